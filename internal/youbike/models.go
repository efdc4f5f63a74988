package youbike

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ntugo/ntugo/internal/geo"
)

// Station is a normalised YouBike station.
type Station struct {
	SNO   string  `json:"sno"`
	SNA   string  `json:"sna"`
	Tot   int     `json:"tot"`
	SBI   int     `json:"sbi"`
	BEmp  int     `json:"bemp"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Act   string  `json:"act"`
	AR    string  `json:"ar,omitempty"`
	SArea string  `json:"sarea,omitempty"`
	MDay  string  `json:"mday,omitempty"`
}

// Active reports whether the station is in service.
func (s Station) Active() bool {
	return s.Act == "1"
}

// Position returns the station coordinate for geo lookups.
func (s Station) Position() geo.Position {
	return geo.Position{Lat: s.Lat, Lng: s.Lng}
}

// Name returns the station name for geo lookups.
func (s Station) Name() string {
	return s.SNA
}

// feedStation covers both vocabularies the feed has used.
type feedStation struct {
	SNO                  flexValue `json:"sno"`
	SNA                  flexValue `json:"sna"`
	Latitude             flexValue `json:"latitude"`
	Lat                  flexValue `json:"lat"`
	Longitude            flexValue `json:"longitude"`
	Lng                  flexValue `json:"lng"`
	Quantity             flexValue `json:"Quantity"`
	Tot                  flexValue `json:"tot"`
	AvailableRentBikes   flexValue `json:"available_rent_bikes"`
	SBI                  flexValue `json:"sbi"`
	AvailableReturnBikes flexValue `json:"available_return_bikes"`
	BEmp                 flexValue `json:"bemp"`
	Act                  flexValue `json:"act"`
	AR                   flexValue `json:"ar"`
	SArea                flexValue `json:"sarea"`
	MDay                 flexValue `json:"mday"`
	UpdateTime           flexValue `json:"updateTime"`
}

// normalize converts a feed record; ok is false when the coordinates are unusable.
func (f feedStation) normalize() (Station, bool) {
	lat, latOK := first(f.Latitude, f.Lat).asFloat()
	lng, lngOK := first(f.Longitude, f.Lng).asFloat()
	if !latOK || !lngOK || lat == 0 || lng == 0 {
		return Station{}, false
	}

	act := string(f.Act)
	if act == "" {
		act = "0"
	}

	return Station{
		SNO:   string(f.SNO),
		SNA:   string(f.SNA),
		Tot:   first(f.Quantity, f.Tot).asInt(),
		SBI:   first(f.AvailableRentBikes, f.SBI).asInt(),
		BEmp:  first(f.AvailableReturnBikes, f.BEmp).asInt(),
		Lat:   lat,
		Lng:   lng,
		Act:   act,
		AR:    string(f.AR),
		SArea: string(f.SArea),
		MDay:  string(first(f.MDay, f.UpdateTime)),
	}, true
}

// flexValue holds a JSON string or number as its trimmed text.
type flexValue string

func (v *flexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexValue(strings.TrimSpace(s))
		return nil
	}
	*v = flexValue(data)
	return nil
}

// present reports whether the value is set and not a zero number.
func (v flexValue) present() bool {
	if v == "" {
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil && f == 0 {
		return false
	}
	return true
}

func (v flexValue) asFloat() (float64, bool) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asInt parses the leading integer, treating garbage as zero.
func (v flexValue) asInt() int {
	s := string(v)
	if i := strings.IndexFunc(s, func(r rune) bool { return r == '.' || r == 'e' || r == 'E' }); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// first returns the first present value, or the last one given.
func first(values ...flexValue) flexValue {
	for _, v := range values {
		if v.present() {
			return v
		}
	}
	return values[len(values)-1]
}
