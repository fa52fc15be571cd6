// Package userapps encodes the value stored for each device. The encoding is the protobuf wire format of
//
//	message UserApps {
//	    repeated int64 apps = 1 [packed = true];
//	    optional double lat = 2;
//	    optional double lon = 3;
//	}
package userapps

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/G-Research/memcload/internal/memcload/model"
)

const (
	appsField protowire.Number = 1
	latField  protowire.Number = 2
	lonField  protowire.Number = 3
)

type UserApps struct {
	Apps []int64
	Lat  float64
	Lon  float64
}

func FromAppsInstalled(a *model.AppsInstalled) *UserApps {
	return &UserApps{Apps: a.Apps, Lat: a.Lat, Lon: a.Lon}
}

func (u *UserApps) String() string {
	return fmt.Sprintf("lat: %v lon: %v apps: %v", u.Lat, u.Lon, u.Apps)
}

// Equal reports whether u and other describe the same value. A nil app list equals an empty one.
func (u *UserApps) Equal(other *UserApps) bool {
	if u == nil || other == nil {
		return u == other
	}
	if len(u.Apps) != len(other.Apps) {
		return false
	}
	for i := range u.Apps {
		if u.Apps[i] != other.Apps[i] {
			return false
		}
	}
	return math.Float64bits(u.Lat) == math.Float64bits(other.Lat) &&
		math.Float64bits(u.Lon) == math.Float64bits(other.Lon)
}

func Marshal(u *UserApps) []byte {
	var packed []byte
	for _, app := range u.Apps {
		packed = protowire.AppendVarint(packed, uint64(app))
	}
	size := 2*(protowire.SizeTag(latField)+protowire.SizeFixed64()) +
		protowire.SizeTag(appsField) + protowire.SizeBytes(len(packed))
	b := make([]byte, 0, size)
	if len(u.Apps) > 0 {
		b = protowire.AppendTag(b, appsField, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	b = protowire.AppendTag(b, latField, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(u.Lat))
	b = protowire.AppendTag(b, lonField, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(u.Lon))
	return b
}

// Unmarshal decodes b. Apps may be packed or not; unknown fields are skipped.
func Unmarshal(b []byte) (*UserApps, error) {
	u := &UserApps{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithMessage(protowire.ParseError(n), "reading tag")
		}
		b = b[n:]

		switch {
		case num == appsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.WithMessage(protowire.ParseError(n), "reading apps")
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, errors.WithMessage(protowire.ParseError(m), "reading packed app")
				}
				packed = packed[m:]
				u.Apps = append(u.Apps, int64(v))
			}
		case num == appsField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.WithMessage(protowire.ParseError(n), "reading app")
			}
			b = b[n:]
			u.Apps = append(u.Apps, int64(v))
		case (num == latField || num == lonField) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, errors.WithMessage(protowire.ParseError(n), "reading coordinate")
			}
			b = b[n:]
			if num == latField {
				u.Lat = math.Float64frombits(v)
			} else {
				u.Lon = math.Float64frombits(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.WithMessagef(protowire.ParseError(n), "skipping field %d", num)
			}
			b = b[n:]
		}
	}
	return u, nil
}
