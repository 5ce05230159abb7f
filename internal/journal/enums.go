package journal

import "strings"

// EnumKind names a table of identifier descriptions.
type EnumKind string

const (
	EnumShip     EnumKind = "ship"
	EnumBodyType EnumKind = "bodytype"
)

// Keys are lower-case game identifiers.
var enumDescriptions = map[EnumKind]map[string]string{
	EnumShip: {
		"adder":                         "Adder",
		"anaconda":                      "Anaconda",
		"asp":                           "Asp Explorer",
		"asp_scout":                     "Asp Scout",
		"belugaliner":                   "Beluga Liner",
		"cobramkiii":                    "Cobra Mk III",
		"cobramkiv":                     "Cobra Mk IV",
		"cutter":                        "Imperial Cutter",
		"diamondback":                   "Diamondback Scout",
		"diamondbackxl":                 "Diamondback Explorer",
		"dolphin":                       "Dolphin",
		"eagle":                         "Eagle",
		"empire_courier":                "Imperial Courier",
		"empire_eagle":                  "Imperial Eagle",
		"empire_trader":                 "Imperial Clipper",
		"federation_corvette":           "Federal Corvette",
		"federation_dropship":           "Federal Dropship",
		"federation_dropship_mkii":      "Federal Assault Ship",
		"federation_gunship":            "Federal Gunship",
		"ferdelance":                    "Fer-de-Lance",
		"hauler":                        "Hauler",
		"independant_trader":            "Keelback",
		"krait_light":                   "Krait Phantom",
		"krait_mkii":                    "Krait Mk II",
		"mamba":                         "Mamba",
		"orca":                          "Orca",
		"python":                        "Python",
		"sidewinder":                    "Sidewinder Mk I",
		"type6":                         "Type-6 Transporter",
		"type7":                         "Type-7 Transporter",
		"type9":                         "Type-9 Heavy",
		"type9_military":                "Type-10 Defender",
		"typex":                         "Alliance Chieftain",
		"typex_2":                       "Alliance Crusader",
		"typex_3":                       "Alliance Challenger",
		"viper":                         "Viper Mk III",
		"viper_mkiv":                    "Viper Mk IV",
		"vulture":                       "Vulture",
		"testbuggy":                     "SRV Scarab",
		"empire_fighter":                "Imperial Fighter",
		"federation_fighter":            "F63 Condor",
		"independent_fighter":           "Taipan Fighter",
		"independant_trader_fighterbay": "Keelback",
	},
	EnumBodyType: {
		"null":            "Unknown",
		"star":            "Star",
		"planet":          "Planet",
		"planetaryring":   "Planetary Ring",
		"stellarring":     "Stellar Ring",
		"station":         "Station",
		"asteroidcluster": "Asteroid Cluster",
	},
}

// Field names (lower-case) whose values are enum identifiers.
var enumFields = map[string]EnumKind{
	"ship":     EnumShip,
	"shiptype": EnumShip,
	"bodytype": EnumBodyType,
}

// EnumField reports which table describes values of the named field.
func EnumField(name string) (EnumKind, bool) {
	k, ok := enumFields[strings.ToLower(name)]
	return k, ok
}

// Describe returns the registered description for id, or id itself.
func Describe(kind EnumKind, id string) string {
	if d, ok := enumDescriptions[kind][strings.ToLower(strings.TrimSpace(id))]; ok {
		return d
	}
	return id
}
