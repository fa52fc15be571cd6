package parse

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/memcload/model"
)

const numFields = 5

// AppsInstalled parses one tab separated line of the form
//
//	dev_type \t dev_id \t lat \t lon \t app1,app2,...
//
// Trailing whitespace, tabs included, is ignored. A blank line returns (nil, nil) and should be skipped.
// A line with fewer than five fields, or with an empty dev_type or dev_id, returns an *loaderrors.ErrParse.
// Everything after the fourth tab is treated as the app list.
//
// Parsing is lenient about the numeric fields: apps that are not integers are dropped and a bad lat or lon
// is left at zero. Both cases are logged, and the record is still returned.
func AppsInstalled(line []byte) (*model.AppsInstalled, error) {
	trimmed := bytes.TrimRightFunc(line, unicode.IsSpace)
	if len(bytes.TrimSpace(trimmed)) == 0 {
		return nil, nil
	}
	s := string(trimmed)

	parts := strings.SplitN(s, "\t", numFields)
	if len(parts) < numFields {
		return nil, &loaderrors.ErrParse{Line: s, Message: "expected 5 tab separated fields"}
	}
	devType, devId, rawLat, rawLon, rawApps := parts[0], parts[1], parts[2], parts[3], parts[4]
	if devType == "" || devId == "" {
		return nil, &loaderrors.ErrParse{Line: s, Message: "empty dev_type or dev_id"}
	}

	apps, ok := parseApps(rawApps)
	if !ok {
		log.Infof("Not all user apps are digits: `%s`", s)
	}

	result := &model.AppsInstalled{DevType: devType, DevId: devId, Apps: apps}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
	if latErr != nil || lonErr != nil {
		log.Infof("Invalid geo coords: `%s`", s)
	}
	if latErr == nil {
		result.Lat = lat
	}
	if lonErr == nil {
		result.Lon = lon
	}
	return result, nil
}

// parseApps returns every entry of the comma separated list that is an integer. ok is false if any non-empty
// entry had to be dropped.
func parseApps(raw string) (apps []int64, ok bool) {
	ok = true
	entries := strings.Split(raw, ",")
	apps = make([]int64, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		app, err := strconv.ParseInt(entry, 10, 64)
		if err != nil {
			ok = false
			continue
		}
		apps = append(apps, app)
	}
	return apps, ok
}
