package api

// ModeCar is the unified mode that carries v85 speed data; speed is only
// meaningful for vehicular traffic.
const ModeCar = "car"

// classToMode translates Vivacity detection classes into the unified mode
// vocabulary shared across traffic sources. The table is loaded once and
// never mutated. Mapping is best-effort: an unrecognized class passes
// through unchanged.
var classToMode = map[string]string{
	"pedestrian":    "pedestrian",
	"cyclist":       "cyclist",
	"escooter":      "escooter",
	"motorbike":     "motorcycle",
	"car":           "car",
	"taxi":          "car",
	"emergency car": "car",
	"van":           "van",
	"emergency van": "van",
	"bus":           "bus",
	"minibus":       "bus",
	"rigid":         "hgv",
	"truck":         "hgv",
	"fire engine":   "hgv",
}

// ModeForClass maps a vendor class label to its unified mode, passing the
// label through when no mapping exists.
func ModeForClass(class string) string {
	if mode, ok := classToMode[class]; ok {
		return mode
	}
	return class
}
