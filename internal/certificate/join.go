package certificate

// Join merges several DGCs of one holder into a single logical record. For
// each entry type independently only the chronologically latest entry
// survives; date ties fall to the lexicographically greatest UVCI. When the
// holder identities of the inputs do not match, Join refuses to guess and
// reports ok == false.
func Join(dgcs []DGC) (DGC, bool) {
	if len(dgcs) == 0 {
		return DGC{}, false
	}
	first := dgcs[0]
	for _, d := range dgcs[1:] {
		if !first.SameHolder(d) {
			return DGC{}, false
		}
	}

	merged := DGC{
		Name:      first.Name,
		BirthDate: first.BirthDate,
		Version:   first.Version,
	}
	for _, d := range dgcs {
		merged.Vaccinations = append(merged.Vaccinations, d.Vaccinations...)
		merged.Tests = append(merged.Tests, d.Tests...)
		merged.Recoveries = append(merged.Recoveries, d.Recoveries...)
	}

	if v, ok := merged.LatestVaccination(); ok {
		merged.Vaccinations = []Vaccination{v}
	} else {
		merged.Vaccinations = nil
	}
	if t, ok := merged.LatestTest(); ok {
		merged.Tests = []TestEntry{t}
	} else {
		merged.Tests = nil
	}
	if r, ok := merged.LatestRecovery(); ok {
		merged.Recoveries = []Recovery{r}
	} else {
		merged.Recoveries = nil
	}
	return merged, true
}
