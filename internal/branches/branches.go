// Package branches maps catalogue holding locations to libraries and
// street addresses.
package branches

import (
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// Place is a library or branch with its street address. Address is empty
// when the location is unknown.
type Place struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

// Key identifies a place for grouping
func (p Place) Key() string {
	return p.Name + "|" + p.Address
}

// centralPrefix marks Tallinn Central Library locations; the word after it
// names the branch
const centralPrefix = "TlnRK"

type library struct {
	sigil string
	place Place
}

// libraries are matched by location prefix in this order
var libraries = []library{
	{"RaRa", Place{"Eesti Rahvusraamatukogu", "Tõnismägi 2, Tallinn, Estonia"}},
	{"TÜR", Place{"Tartu Ülikooli Raamatukogu", "W. Struve 1, Tartu, Estonia"}},
	{"TLÜAR", Place{"Tallinna Ülikooli Akadeemiline RK", "Rävala puiestee 10, Tallinn, Estonia"}},
	{"TalTech", Place{"TalTech Raamatukogu (peahoone)", "Akadeemia tee 1, Tallinn, Estonia"}},
	{"EKA", Place{"Eesti Kunstiakadeemia Raamatukogu", "Kotzebue 1, Tallinn, Estonia"}},
	{"EMU", Place{"Eesti Maaülikooli Raamatukogu", "Fr. R. Kreutzwaldi 1A, Tartu, Estonia"}},
	{"TlnRK", Place{"Tallinna Keskraamatukogu (süsteem)", "Estonia pst 8, Tallinn, Estonia"}},
	{"Tartu LR", Place{"Tartu Linnaraamatukogu", "Kompanii 3/5, Tartu, Estonia"}},
	{"KMAR", Place{"Kaitseväe Akadeemia Raamatukogu", "Riia 21, Tartu, Estonia"}},
	{"KV", Place{"Kaitseväe Peastaabi Raamatukogu", "Juhkentali 58, Tallinn, Estonia"}},
	{"TARTU", Place{"Tartu Ülikooli Raamatukogu", "W. Struve 1, Tartu, Estonia"}},
	{"TLKR", Place{"Tallinna Keskraamatukogu – Peahoone", "Estonia pst 8, Tallinn, Estonia"}},
}

// centralMain is where a bare "TlnRK" location points
var centralMain = Place{"Tallinna Keskraamatukogu – Peahoone", "Estonia pst 8, Tallinn, Estonia"}

// centralFallback is used for an unknown Tallinn Central Library branch
var centralFallback = Place{"Tallinna Keskraamatukogu", "Tallinn"}

// branches of the Tallinn Central Library, keyed by textnorm.Slug
var branches = slugged(map[string]Place{
	"SÜDALINNA":   {"TKR Südalinna", "Estonia pst 8, Tallinn"},
	"LIIVALAIA":   {"TKR Liivalaia", "Liivalaia 40, Tallinn"},
	"KADRIORU":    {"TKR Kadriorg", "Lydia Koidula 12a, Tallinn"},
	"KALAMAJA":    {"TKR Kalamaja", "Kotzebue 9, Tallinn"},
	"KÄNNUKUKE":   {"TKR Kännukuke", "Eduard Vilde tee 72, Tallinn"},
	"LAAGNA":      {"TKR Laagna", "Võru 11, Tallinn"},
	"MÄNNI":       {"TKR Männi", "Ehitajate tee 48, Tallinn"},
	"MÄNNIKU":     {"TKR Männiku", "Pihlaka 12, Tallinn"},
	"NURMENUKU":   {"TKR Nurmenuku", "Ehitajate tee 109a/2, Tallinn"},
	"NÕMME":       {"TKR Nõmme", "Raudtee 68, Tallinn"},
	"PAEPEALSE":   {"TKR Paepealse", "Paul Pinna 8, Tallinn"},
	"PELGURANNA":  {"TKR Pelguranna", "Kangru 13, Tallinn"},
	"PIRITA":      {"TKR Pirita", "Metsavahi tee 19, Tallinn"},
	"PÄÄSKÜLA":    {"TKR Pääsküla", "Pärnu mnt 480a, Tallinn"},
	"SÕLE":        {"TKR Sõle", "Sõle 47b, Tallinn"},
	"SÄÄSE":       {"TKR Sääse", "Sõpruse pst 186, Tallinn"},
	"TONDI":       {"TKR Tondi", "Pärnu mnt 125, Tallinn"},
	"TORUPILLI":   {"TKR Torupilli", "Gonsiori 36, Tallinn"},
	"VÄIKEÕISMÄE": {"TKR Väike-Õismäe", "Õismäe tee 115a, Tallinn"},
	"BUSSI":       {"TKR Raamatukogubuss", "Tallinn, Estonia"},
})

func slugged(in map[string]Place) map[string]Place {
	out := make(map[string]Place, len(in))
	for k, v := range in {
		out[textnorm.Slug(k)] = v
	}
	return out
}

// Resolve maps a holdings location to its place. Unknown locations come
// back as themselves with an empty address.
func Resolve(location string) Place {
	loc := strings.TrimSpace(location)
	if strings.HasPrefix(loc, centralPrefix) {
		rest := strings.TrimLeft(strings.TrimPrefix(loc, centralPrefix), " ,:-")
		if rest == "" {
			return centralMain
		}
		key := textnorm.Slug(strings.Fields(rest)[0])
		if p, ok := branches[key]; ok {
			return p
		}
		return centralFallback
	}
	for _, lib := range libraries {
		if strings.HasPrefix(loc, lib.sigil) {
			return lib.place
		}
	}
	return Place{Name: loc}
}

// MarkerColour grades a branch marker by how many wanted titles it holds
func MarkerColour(titles int) string {
	switch {
	case titles <= 1:
		return "red"
	case titles <= 3:
		return "orange"
	case titles <= 7:
		return "beige"
	default:
		return "green"
	}
}
