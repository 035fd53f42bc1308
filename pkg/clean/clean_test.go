package clean

import (
	"errors"
	"slices"
	"testing"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

func TestTransactions(t *testing.T) {
	src, err := frame.FromColumns(
		[]string{"annee", "code_departement", "nom_commune", "type_local", "valeur_fonciere", "surface_reelle_bati"},
		[][]string{
			{"2020", "2020", "1999", "2021", "2022", "2023"},
			{"1", "13", "75", "75", "2A", " 75 "},
			{"Bourg-en-Bresse", "Marseille", "Paris", "Paris", "Ajaccio", "Paris"},
			{"Maison", "Appartement", "Appartement", "Local industriel", "appartement", "Maison"},
			{"100000", "0", "500000", "900000", "300000", "1 000 000,00"},
			{"50", "40", "50", "300", "100", "25"},
		},
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}

	out, rep, err := Transactions(src, geo.Default(), DefaultTransactionOptions())
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if rep.RowsIn != 6 || rep.RowsKept != 3 {
		t.Errorf("report = %+v", rep)
	}
	for reason, want := range map[string]int{DropYear: 1, DropValue: 1, DropType: 1} {
		if rep.Dropped[reason] != want {
			t.Errorf("dropped[%s] = %d, want %d", reason, rep.Dropped[reason], want)
		}
	}
	if rep.Renamed["nom_commune"] != ColCommune {
		t.Errorf("renamed = %v", rep.Renamed)
	}

	tests := []struct {
		row       int
		col, want string
	}{
		{0, ColCodeDep, "01"},
		{0, ColRegion, "Auvergne-Rhône-Alpes"},
		{0, ColZone, "Centre"},
		{0, ColPrixM2, "2000"},
		{0, ColClasseSurface, "30-60"},
		{0, ColCommune, "Bourg-en-Bresse"},
		{0, ColZoneParis, geo.AutreLabel},
		{1, ColCodeDep, "2A"},
		{1, ColRegion, "Corse"},
		{1, ColZone, "Sud"},
		{1, ColNomDep, "Corse-du-Sud"},
		{1, ColClasseSurface, ">90"},
		{2, ColCodeDep, "75"},
		{2, ColZoneParis, geo.ParisLabel},
		{2, ColPrixM2, "40000"},
		{2, ColValeur, "1000000"},
		{2, ColClasseSurface, "<=30"},
		{2, ColAnnee, "2023"},
	}
	for _, tt := range tests {
		if got := out.Value(tt.row, tt.col); got != tt.want {
			t.Errorf("row %d %s = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
	if src.Has(ColPrixM2) || !src.Has("nom_commune") {
		t.Error("source frame was modified")
	}
}

func TestTransactions_DateMutation(t *testing.T) {
	src, _ := frame.FromColumns(
		[]string{"date_mutation", "code_departement", "valeur_fonciere", "surface_reelle_bati"},
		[][]string{
			{"15/03/2021", "2019-07-01", "2024-01-05 00:00:00", "n/a"},
			{"33", "33", "33", "33"},
			{"200000", "200000", "200000", "200000"},
			{"100", "100", "100", "100"},
		},
	)
	out, rep, err := Transactions(src, geo.Default(), TransactionOptions{MinYear: 2000, MaxYear: 2025})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if out.Len() != 3 || rep.Dropped[DropYear] != 1 {
		t.Fatalf("rows = %d, report = %+v", out.Len(), rep)
	}
	for i, want := range []string{"2021", "2019", "2024"} {
		if got := out.Value(i, ColAnnee); got != want {
			t.Errorf("annee[%d] = %q, want %q", i, got, want)
		}
	}
	if len(rep.Notices) == 0 {
		t.Error("expected a notice for the missing commune column")
	}
}

func TestTransactions_CodeFromCommune(t *testing.T) {
	src, _ := frame.FromColumns(
		[]string{"annee", "code_commune", "valeur_fonciere", "surface_reelle_bati"},
		[][]string{{"2022", "2022"}, {"1004", "2B033"}, {"100", "100"}, {"10", "10"}},
	)
	out, _, err := Transactions(src, geo.Default(), TransactionOptions{})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if got := out.Value(0, ColCodeDep); got != "01" {
		t.Errorf("code_departement = %q, want 01", got)
	}
	if got := out.Value(0, ColCodeCommune); got != "01004" {
		t.Errorf("code_commune = %q, want 01004", got)
	}
	if got := out.Value(1, ColCodeDep); got != "2B" {
		t.Errorf("code_departement = %q, want 2B", got)
	}
}

func TestTransactions_MissingColumns(t *testing.T) {
	src, _ := frame.FromColumns([]string{"annee", "code_departement", "surface_reelle_bati"}, [][]string{{"2020"}, {"01"}, {"10"}})
	if _, _, err := Transactions(src, geo.Default(), DefaultTransactionOptions()); !errors.Is(err, frame.ErrColumnMissing) {
		t.Errorf("err = %v, want ErrColumnMissing", err)
	}
	src, _ = frame.FromColumns([]string{"valeur_fonciere", "code_departement", "surface_reelle_bati"}, [][]string{{"1"}, {"01"}, {"10"}})
	if _, _, err := Transactions(src, geo.Default(), DefaultTransactionOptions()); !errors.Is(err, frame.ErrColumnMissing) {
		t.Errorf("no year column: err = %v, want ErrColumnMissing", err)
	}
}

func TestPricePerArea(t *testing.T) {
	tests := []struct {
		value, area frame.Num
		want        frame.Num
	}{
		{frame.Some(100000), frame.Some(50), frame.Some(2000)},
		{frame.Some(0), frame.Some(50), frame.Num{}},
		{frame.Some(100000), frame.Some(0), frame.Num{}},
		{frame.Some(-5), frame.Some(10), frame.Num{}},
		{frame.Num{}, frame.Some(10), frame.Num{}},
		{frame.Some(10), frame.Num{}, frame.Num{}},
	}
	for _, tt := range tests {
		if got := PricePerArea(tt.value, tt.area); got != tt.want {
			t.Errorf("PricePerArea(%v, %v) = %v, want %v", tt.value, tt.area, got, tt.want)
		}
	}
}

func TestSurfaceClass(t *testing.T) {
	tests := []struct {
		area float64
		want string
	}{
		{0, ""},
		{12, "<=30"},
		{30, "<=30"},
		{30.5, "30-60"},
		{60, "30-60"},
		{90, "60-90"},
		{90.01, ">90"},
	}
	for _, tt := range tests {
		if got := SurfaceClass(tt.area); got != tt.want {
			t.Errorf("SurfaceClass(%v) = %q, want %q", tt.area, got, tt.want)
		}
	}
}

func TestRisks(t *testing.T) {
	src, _ := frame.FromColumns(
		[]string{"codgeo", "pmun_2014", "risque_climatique", "r_atm_2016", "annee"},
		[][]string{
			{"1004", "2A004", "abc"},
			{"1200", "300", ""},
			{"0.5", "0.8", "0.1"},
			{"1", "2", "3"},
			{"2020", "2021", "2021"},
		},
	)
	communes, _ := frame.FromColumns(
		[]string{"typecom", "com", "libelle"},
		[][]string{{"COM", "COM"}, {"01004", "2A004"}, {"Ambérieu-en-Bugey", "Ajaccio"}},
	)
	out, rep, err := Risks(src, geo.Default(), communes)
	if err != nil {
		t.Fatalf("Risks: %v", err)
	}
	tests := []struct {
		row       int
		col, want string
	}{
		{0, ColCodeCommune, "01004"},
		{0, ColCodeDep, "01"},
		{0, ColNomDep, "Ain"},
		{0, ColCommune, "Ambérieu-en-Bugey"},
		{0, ColPopulation, "1200"},
		{0, ColRisqueGlobal, "0.5"},
		{0, ColRisqueChaleur, "1"},
		{1, ColCodeDep, "2A"},
		{1, ColZone, "Sud"},
		{1, ColCommune, "Ajaccio"},
		{2, ColCodeCommune, ""},
		{2, ColRegion, "Région inconnue"},
	}
	for _, tt := range tests {
		if got := out.Value(tt.row, tt.col); got != tt.want {
			t.Errorf("row %d %s = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
	if len(rep.Notices) != 3 {
		t.Errorf("notices = %v, want inondation, secheresse and feux missing", rep.Notices)
	}
}

func TestRisks_FloatYears(t *testing.T) {
	src, _ := frame.FromColumns(
		[]string{"code_departement", "population_exposee", "annee"},
		[][]string{{"75", "75", "75", "75"}, {"1000", "1200", "1400", "1500"}, {"2020.0", "2021", " 2022,0 ", "n/a"}},
	)
	out, _, err := Risks(src, geo.Default(), nil)
	if err != nil {
		t.Fatalf("Risks: %v", err)
	}
	col, _ := out.Column(ColAnnee)
	if want := []string{"2020", "2021", "2022", ""}; !slices.Equal(col, want) {
		t.Errorf("annee = %q, want %q", col, want)
	}
	if out.Len() != 4 {
		t.Errorf("rows = %d, want 4", out.Len())
	}
}

func TestRisks_PopulationRequired(t *testing.T) {
	src, _ := frame.FromColumns([]string{"code_departement", "risque_global"}, [][]string{{"01"}, {"1"}})
	if _, _, err := Risks(src, geo.Default(), nil); !errors.Is(err, frame.ErrColumnMissing) {
		t.Errorf("err = %v, want ErrColumnMissing", err)
	}
}
