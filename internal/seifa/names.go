package seifa

import "strings"

// DoubleNames are Victorian suburb names shared by more than one local
// government area, keyed as "{SUBURB} - {LGA}".
var DoubleNames = []string{
	"ASCOT - BALLARAT",
	"ASCOT - GREATER BENDIGO",
	"ASCOT - HEPBURN",
	"BELLFIELD - BANYULE",
	"BELLFIELD - GRAMPIANS",
	"BIG HILL - GREATER BENDIGO",
	"BIG HILL - SURF COAST",
	"FAIRY DELL - CAMPASPE",
	"FAIRY DELL - EAST GIPPSLAND",
	"FRAMLINGHAM - MOYNE",
	"GOLDEN POINT - BALLARAT",
	"GOLDEN POINT - CENTRAL GOLDFIELDS",
	"GOLDEN POINT - MOUNT ALEXANDER",
	"HAPPY VALLEY - GOLDEN PLAINS",
	"HAPPY VALLEY - SWAN HILL",
	"HILLSIDE - EAST GIPPSLAND",
	"HILLSIDE - MELTON",
	"KILLARA - GLENELG",
	"KILLARA - WODONGA",
	"MERRIJIG - EAST GIPPSLAND",
	"MERRIJIG - MANSFIELD",
	"MERRIJIG - WANGARATTA",
	"MOONLIGHT FLAT - CENTRAL GOLDFIELDS",
	"MOONLIGHT FLAT - MOUNT ALEXANDER",
	"MYALL - BULOKE",
	"MYALL - GANNAWARRA",
	"NEWTOWN - GOLDEN PLAINS",
	"NEWTOWN - GREATER GEELONG",
	"REEDY CREEK - MITCHELL",
	"SPRINGFIELD - MACEDON RANGES",
	"SPRINGFIELD - SWAN HILL",
	"STONY CREEK - HEPBURN",
	"STONY CREEK - SOUTH GIPPSLAND",
	"THOMSON - BAW BAW",
	"THOMSON - GREATER GEELONG",
}

var doubleNameSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DoubleNames))
	for _, n := range DoubleNames {
		m[n] = struct{}{}
	}
	return m
}()

// CanonicalKey uppercases the suburb and, when the suburb+LGA pair is a
// known double name, returns the compound key. Otherwise the LGA is ignored.
func CanonicalKey(suburb, lga string) string {
	key := normalizeName(suburb)
	if lga = normalizeName(lga); lga != "" {
		if compound := key + " - " + lga; isDoubleName(compound) {
			return compound
		}
	}
	return key
}

func isDoubleName(key string) bool {
	_, ok := doubleNameSet[key]
	return ok
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
