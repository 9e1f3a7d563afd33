package relimp

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

func TestAUC(t *testing.T) {

	y := []float64{0, 0, 1, 1}
	s := []float64{0.1, 0.4, 0.35, 0.8}
	if math.Abs(AUC(y, s)-0.75) > 1e-10 {
		t.Errorf("auc: %v", AUC(y, s))
	}

	// Ties count half
	if math.Abs(AUC(y, []float64{1, 1, 1, 1})-0.5) > 1e-10 {
		t.Fail()
	}

	// Perfect separation
	if AUC(y, []float64{0, 0, 1, 1}) != 1 {
		t.Fail()
	}

	// No events
	if !math.IsNaN(AUC([]float64{0, 0}, []float64{1, 2})) {
		t.Fail()
	}
}

func TestBrier(t *testing.T) {

	y := []float64{1, 0, 1, 0}
	p := []float64{0.8, 0.2, 0.6, 0.4}

	want := (0.04 + 0.04 + 0.16 + 0.16) / 4
	if math.Abs(BrierScore(y, p)-want) > 1e-10 {
		t.Errorf("brier: %v", BrierScore(y, p))
	}
}

func TestLogisticProbs(t *testing.T) {

	p := LogisticProbs([]float64{0, 100, -100})
	if math.Abs(p[0]-0.5) > 1e-10 || p[1] < 0.999 || p[2] > 0.001 {
		t.Errorf("probs: %v", p)
	}
}

func TestCIndex(t *testing.T) {

	time := []float64{5, 3, 8, 2, 6}
	status := []float64{1, 1, 1, 1, 1}

	score := make([]float64, len(time))
	for i, ti := range time {
		score[i] = -ti
	}

	if c := CIndex(time, status, score, 0.99); math.Abs(c-1) > 1e-8 {
		t.Errorf("cindex: %v", c)
	}

	for i := range score {
		score[i] = -score[i]
	}
	if c := CIndex(time, status, score, 0.99); math.Abs(c) > 1e-8 {
		t.Errorf("reversed cindex: %v", c)
	}
}

// rankData builds a dataset where x1 drives the binary outcome and x2
// is noise.
func rankData() statmodel.Dataset {

	n := 60
	icept := make([]float64, n)
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		icept[i] = 1
		x1[i] = float64(i % 10)
		x2[i] = float64((2 * i) % 5)
		if i%10 >= 5 {
			y[i] = 1
		}
		if i%13 == 0 {
			y[i] = 1 - y[i]
		}
	}

	return statmodel.NewDataset([][]float64{icept, x1, x2, y},
		[]string{"icept", "x1", "x2", "y"})
}

func TestRankLogistic(t *testing.T) {

	config := DefaultConfig()
	config.Bootstrap = 20
	config.InterceptVar = "icept"

	rows, err := RankLogistic(rankData(), "y", []string{"x1", "x2"}, config)
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Name != "x1" {
		t.Errorf("top predictor: %s", rows[0].Name)
	}
	if rows[0].RI < rows[1].RI {
		t.Fail()
	}
	for _, r := range rows {
		if r.SelFreq < 0 || r.SelFreq > 1+1e-10 {
			t.Errorf("selfreq out of range: %+v", r)
		}
		if r.DeltaPred < 0 {
			t.Errorf("negative drop-one loss survived: %+v", r)
		}
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("csv:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[1], "1,x1,") {
		t.Errorf("first rank line: %s", lines[1])
	}
}

// survData builds a survival dataset where larger x1 means shorter
// survival and x2 is noise.
func survData() statmodel.Dataset {

	n := 50
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	tm := make([]float64, n)
	st := make([]float64, n)

	for i := 0; i < n; i++ {
		x1[i] = float64(i % 5)
		x2[i] = float64((3 * i) % 7)
		tm[i] = 40 - 6*x1[i] + float64(i%7)
		st[i] = 1
		if i%9 == 0 {
			st[i] = 0
		}
	}

	return statmodel.NewDataset([][]float64{tm, st, x1, x2},
		[]string{"time", "status", "x1", "x2"})
}

func TestRankCox(t *testing.T) {

	config := DefaultConfig()
	config.Bootstrap = 10

	rows, err := RankCox(survData(), "time", "status", []string{"x1", "x2"}, config)
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Name != "x1" {
		t.Errorf("top predictor: %s", rows[0].Name)
	}
	if rows[0].StdCoef <= rows[1].StdCoef {
		t.Errorf("x1 should dominate: %+v", rows)
	}
}
