package text

// englishAbbreviations are expanded when the text is not Spanish
var englishAbbreviations = map[string]string{
	"Dr.":     "Doctor",
	"Mr.":     "Mister",
	"Mrs.":    "Missus",
	"Ms.":     "Miss",
	"Prof.":   "Professor",
	"vs.":     "versus",
	"etc.":    "etcetera",
	"St.":     "Saint",
	"Jr.":     "Junior",
	"Sr.":     "Senior",
	"Ltd.":    "Limited",
	"Inc.":    "Incorporated",
	"Corp.":   "Corporation",
	"Ave.":    "Avenue",
	"Blvd.":   "Boulevard",
	"Apt.":    "Apartment",
	"Vol.":    "Volume",
	"Ch.":     "Chapter",
	"Fig.":    "Figure",
	"approx.": "approximately",
	"govt.":   "government",
	"dept.":   "department",
	"Mt.":     "Mount",
	"i.e.":    "that is",
	"e.g.":    "for example",
	"a.m.":    "A M",
	"p.m.":    "P M",
	"A.M.":    "A M",
	"P.M.":    "P M",

	"Jan.":  "January",
	"Feb.":  "February",
	"Mar.":  "March",
	"Apr.":  "April",
	"Jun.":  "June",
	"Jul.":  "July",
	"Aug.":  "August",
	"Sep.":  "September",
	"Sept.": "September",
	"Oct.":  "October",
	"Nov.":  "November",
	"Dec.":  "December",
}

var spanishAbbreviations = map[string]string{
	"Dr.":    "Doctor",
	"Dra.":   "Doctora",
	"Sr.":    "Señor",
	"Sra.":   "Señora",
	"Srta.":  "Señorita",
	"Prof.":  "Profesor",
	"Profa.": "Profesora",
	"Lic.":   "Licenciado",
	"Lda.":   "Licenciada",
	"Ing.":   "Ingeniero",
	"Arq.":   "Arquitecto",
	"Abog.":  "Abogado",
	"Gral.":  "General",
	"Cnel.":  "Coronel",
	"Tte.":   "Teniente",
	"Cpt.":   "Capitán",
	"Ud.":    "Usted",
	"Uds.":   "Ustedes",
	"S.A.":   "Sociedad Anónima",
	"Cía.":   "Compañía",
	"Pág.":   "Página",
	"págs.":  "páginas",
	"Cap.":   "Capítulo",
	"Vol.":   "Volumen",
	"Núm.":   "Número",
	"núm.":   "número",
	"etc.":   "etcétera",
	"Ej.":    "Ejemplo",
	"ej.":    "ejemplo",
	"a.m.":   "de la mañana",
	"p.m.":   "de la tarde",
	"A.M.":   "de la mañana",
	"P.M.":   "de la tarde",
}

// Abbreviations returns the expansion table for lang. Anything other than
// Spanish uses the English table.
func Abbreviations(lang string) map[string]string {
	if lang == LanguageSpanish {
		return spanishAbbreviations
	}
	return englishAbbreviations
}
