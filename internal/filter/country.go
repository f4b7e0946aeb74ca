package filter

import "strings"

var countryNames = map[string]string{
	"ad":      "Andorra",
	"ae":      "United Arab Emirates",
	"ao":      "Angola",
	"ar":      "Argentina",
	"at":      "Austria",
	"au":      "Australia",
	"ba":      "Bosnia and Herzegovina",
	"be":      "Belgium",
	"bg":      "Bulgaria",
	"br":      "Brazil",
	"by":      "Belarus",
	"ca":      "Canada",
	"ch":      "Switzerland",
	"cl":      "Chile",
	"cn":      "China",
	"co":      "Colombia",
	"cr":      "Costa Rica",
	"cz":      "Czech Republic",
	"de":      "Germany",
	"dk":      "Denmark",
	"ec":      "Ecuador",
	"ee":      "Estonia",
	"es":      "Spain",
	"fi":      "Finland",
	"fr":      "France",
	"gb":      "United Kingdom",
	"ge":      "Georgia",
	"gf":      "French Guiana",
	"gr":      "Greece",
	"gt":      "Guatemala",
	"hk":      "Hong Kong",
	"hr":      "Croatia",
	"hu":      "Hungary",
	"id":      "Indonesia",
	"ie":      "Ireland",
	"il":      "Israel",
	"in":      "India",
	"ir":      "Iran",
	"is":      "Iceland",
	"it":      "Italy",
	"jo":      "Jordan",
	"jp":      "Japan",
	"kh":      "Cambodia",
	"kr":      "South Korea",
	"lt":      "Lithuania",
	"lu":      "Luxembourg",
	"lv":      "Latvia",
	"ma":      "Morocco",
	"md":      "Moldova",
	"mk":      "North Macedonia",
	"mx":      "Mexico",
	"my":      "Malaysia",
	"nl":      "Netherlands",
	"no":      "Norway",
	"np":      "Nepal",
	"nz":      "New Zealand",
	"pe":      "Peru",
	"ph":      "Philippines",
	"pk":      "Pakistan",
	"pl":      "Poland",
	"pt":      "Portugal",
	"re":      "Réunion",
	"ro":      "Romania",
	"rs":      "Serbia",
	"ru":      "Russia",
	"sa":      "Saudi Arabia",
	"se":      "Sweden",
	"sg":      "Singapore",
	"si":      "Slovenia",
	"sk":      "Slovakia",
	"sm":      "San Marino",
	"th":      "Thailand",
	"tr":      "Turkey",
	"tw":      "Taiwan",
	"ua":      "Ukraine",
	"us":      "United States",
	"uy":      "Uruguay",
	"ve":      "Venezuela",
	"vn":      "Vietnam",
	"za":      "South Africa",
	"unknown": "Unknown",
}

// CountryName returns a display name for a country code. Unknown codes are
// title-cased.
func CountryName(code string) string {
	if code == "" {
		return "Unknown"
	}
	code = strings.ToLower(code)
	if name, ok := countryNames[code]; ok {
		return name
	}
	return titleCase(code)
}

func titleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
