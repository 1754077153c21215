package reference

import "testing"

func TestNormalizeCityNameFoldsAndTrims(t *testing.T) {
	cases := map[string]string{
		"  Якутск ":    "якутск",
		"г. Якутск":    "якутск",
		"г Мирный":     "мирный",
		"Вёрхоянск":    "верхоянск",
		"Moscow":       "moscow",
		"Санкт-Петербург!": "санкт-петербург",
	}
	for input, want := range cases {
		if got := NormalizeCityName(input); got != want {
			t.Errorf("NormalizeCityName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeCityNameIsIdempotent(t *testing.T) {
	inputs := []string{"г. Якутск", "Novosibirsk", "  Вёрхоянск  "}
	for _, in := range inputs {
		once := NormalizeCityName(in)
		twice := NormalizeCityName(once)
		if once != twice {
			t.Errorf("normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestGenerateStableIDNeverEmpty(t *testing.T) {
	cases := [][]string{
		{"Якутск"},
		{""},
		{"!!!", "???"},
		{"Новосибирск"},
	}
	for _, parts := range cases {
		id := GenerateStableID(parts...)
		if id == "" {
			t.Errorf("GenerateStableID(%v) returned empty string", parts)
		}
	}
}

func TestGenerateStableIDNovosibirsk(t *testing.T) {
	if got := GenerateStableID("Новосибирск"); got != "новосибирск" {
		t.Errorf("GenerateStableID(Новосибирск) = %q, want новосибирск", got)
	}
}

func TestLoadAndLookups(t *testing.T) {
	store, err := Load("assets/unified_cities.json", "assets/airports.json", "assets/suburbs.json")
	if err != nil {
		t.Fatalf("unexpected error loading reference assets: %v", err)
	}

	if !store.IsCityInReference(NormalizeCityName("Якутск")) {
		t.Error("expected Якутск to be in reference")
	}
	if len(store.GetAllFederalCities()) == 0 {
		t.Error("expected at least one federal city")
	}
	if len(store.GetAllYakutiaCities()) == 0 {
		t.Error("expected at least one Yakutia city")
	}
	if city, ok := store.GetCityByAirportName("Якутск"); !ok || city == "" {
		t.Errorf("expected Якутск airport alias to resolve, got %q ok=%v", city, ok)
	}
}
