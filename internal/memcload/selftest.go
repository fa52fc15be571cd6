package memcload

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/memcload/parse"
	"github.com/G-Research/memcload/internal/memcload/userapps"
)

const selfTestSample = "idfa\t1rfw452y52g2gq4g\t55.55\t42.42\t1423,43,567,3,7,23\n" +
	"gaid\t7rfw452y52g2gq4g\t55.55\t42.42\t7423,424"

// SelfTest checks that sample lines survive parsing and a round trip through the stored encoding.
func SelfTest() error {
	for _, line := range strings.Split(selfTestSample, "\n") {
		record, err := parse.AppsInstalled([]byte(line))
		if err != nil {
			return errors.WithMessage(err, "self test")
		}
		if record == nil {
			return errors.Errorf("self test: sample line %q was skipped", line)
		}
		original := userapps.FromAppsInstalled(record)
		decoded, err := userapps.Unmarshal(userapps.Marshal(original))
		if err != nil {
			return errors.WithMessagef(err, "self test: decoding %s", record.Key())
		}
		if !original.Equal(decoded) {
			return errors.Errorf("self test: %s round tripped to %s, expected %s", record.Key(), decoded, original)
		}
		log.Infof("Self test %s -> %s ok", record.Key(), original)
	}
	return nil
}
