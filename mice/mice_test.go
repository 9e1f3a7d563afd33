package mice

import (
	"math"
	"testing"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
)

// lineFrame has y = 2x with two y values missing.
func lineFrame(t *testing.T) *dframe.Frame {

	n := 20
	x := make([]float64, n)
	y := make([]float64, n)
	miss := make([]bool, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		y[i] = 2 * float64(i)
	}
	miss[5] = true
	miss[15] = true
	y[5] = 0
	y[15] = 0

	f := dframe.New()
	if err := f.AddNumeric("x", x); err != nil {
		t.Fatal(err)
	}
	err := f.AddColumn(&dframe.Column{
		Name: "y",
		Type: dframe.Numeric,
		Num:  y,
		Miss: miss,
	})
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func TestInitialFill(t *testing.T) {

	f := dframe.New()
	err := f.AddColumn(&dframe.Column{
		Name: "v",
		Type: dframe.Numeric,
		Num:  []float64{1, 3, 0, 2},
		Miss: []bool{false, false, true, false},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = f.AddColumn(&dframe.Column{
		Name: "g",
		Type: dframe.Categorical,
		Str:  []string{"a", "b", "b", ""},
		Miss: []bool{false, false, false, true},
	})
	if err != nil {
		t.Fatal(err)
	}

	imp, err := New(f, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	g := imp.initialFill()

	v, _ := g.Col("v")
	if v.NumMissing() != 0 || v.Num[2] != 2 {
		t.Errorf("numeric fill: %v", v.Num)
	}

	gc, _ := g.Col("g")
	if gc.NumMissing() != 0 || gc.Str[3] != "b" {
		t.Errorf("mode fill: %v", gc.Str)
	}

	// Source frame untouched
	v0, _ := f.Col("v")
	if !v0.Miss[2] {
		t.Fatal("source frame mutated")
	}
}

func TestImputePMM(t *testing.T) {

	f := lineFrame(t)

	config := DefaultConfig()
	config.Cycles = 3
	imp, err := New(f, config)
	if err != nil {
		t.Fatal(err)
	}

	g, err := imp.RunOne()
	if err != nil {
		t.Fatal(err)
	}

	y, _ := g.Col("y")
	if y.NumMissing() != 0 {
		t.Fatal("missing values remain")
	}

	// Donor values are observed values of y near the true one.
	for _, i := range []int{5, 15} {
		v := y.Num[i]
		if math.Mod(v, 2) != 0 {
			t.Errorf("imputed value %v is not an observed value", v)
		}
		if math.Abs(v-2*float64(i)) > 2*float64(config.Donors)+1 {
			t.Errorf("imputed value %v too far from %v", v, 2*float64(i))
		}
	}
}

func TestImputeBinary(t *testing.T) {

	n := 24
	x := make([]float64, n)
	y := make([]float64, n)
	miss := make([]bool, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i % 8)
		if i%3 != 0 {
			y[i] = float64((i + i/8) % 2)
		} else {
			y[i] = float64(i%8) / 8
			if y[i] > 0.5 {
				y[i] = 1
			} else {
				y[i] = 0
			}
		}
	}
	miss[4] = true
	miss[11] = true
	y[4] = 0
	y[11] = 0

	f := dframe.New()
	if err := f.AddNumeric("x", x); err != nil {
		t.Fatal(err)
	}
	err := f.AddColumn(&dframe.Column{
		Name: "y",
		Type: dframe.Numeric,
		Num:  y,
		Miss: miss,
	})
	if err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	config.Cycles = 2
	imp, err := New(f, config)
	if err != nil {
		t.Fatal(err)
	}

	g, err := imp.RunOne()
	if err != nil {
		t.Fatal(err)
	}

	yc, _ := g.Col("y")
	if yc.NumMissing() != 0 {
		t.Fatal("missing values remain")
	}
	for _, i := range []int{4, 11} {
		if yc.Num[i] != 0 && yc.Num[i] != 1 {
			t.Errorf("binary imputation produced %v", yc.Num[i])
		}
	}
}

func TestDeterminism(t *testing.T) {

	run := func() []float64 {
		f := lineFrame(t)
		config := DefaultConfig()
		config.Cycles = 2
		config.Seed = 99
		imp, err := New(f, config)
		if err != nil {
			t.Fatal(err)
		}
		g, err := imp.RunOne()
		if err != nil {
			t.Fatal(err)
		}
		y, _ := g.Col("y")
		return []float64{y.Num[5], y.Num[15]}
	}

	a := run()
	b := run()
	if a[0] != b[0] || a[1] != b[1] {
		t.Errorf("not deterministic: %v vs %v", a, b)
	}
}

func TestFlags(t *testing.T) {

	f := lineFrame(t)
	imp, err := New(f, nil)
	if err != nil {
		t.Fatal(err)
	}

	g, err := imp.RunOne()
	if err != nil {
		t.Fatal(err)
	}
	if err := imp.AddFlags(g); err != nil {
		t.Fatal(err)
	}

	if g.HasCol("x_imputed") {
		t.Error("flag added for a complete column")
	}
	fl, err := g.Col("y_imputed")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range fl.Num {
		want := 0.0
		if i == 5 || i == 15 {
			want = 1
		}
		if v != want {
			t.Errorf("y_imputed[%d] = %v", i, v)
		}
	}
}

func TestRepairNegatives(t *testing.T) {

	f := dframe.New()
	if err := f.AddNumeric("wbc", []float64{5, -2, 7, 9, -1}); err != nil {
		t.Fatal(err)
	}

	n, err := RepairNegatives(f, []string{"wbc", "absent"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("repaired %d", n)
	}

	c, _ := f.Col("wbc")
	// Median of {5, 7, 9}
	if c.Num[1] != 7 || c.Num[4] != 7 {
		t.Errorf("repaired values: %v", c.Num)
	}
}

func TestPool(t *testing.T) {

	mk := func(v []float64, s []string) *dframe.Frame {
		f := dframe.New()
		if err := f.AddNumeric("x", v); err != nil {
			t.Fatal(err)
		}
		if err := f.AddCategorical("g", s); err != nil {
			t.Fatal(err)
		}
		return f
	}

	f1 := mk([]float64{1, 2}, []string{"a", "b"})
	f2 := mk([]float64{3, 2}, []string{"a", "c"})
	f3 := mk([]float64{2, 2}, []string{"b", "c"})

	p, err := Pool([]*dframe.Frame{f1, f2, f3})
	if err != nil {
		t.Fatal(err)
	}

	x, _ := p.Col("x")
	if x.Num[0] != 2 || x.Num[1] != 2 {
		t.Errorf("pooled numeric: %v", x.Num)
	}

	g, _ := p.Col("g")
	if g.Str[0] != "a" || g.Str[1] != "c" {
		t.Errorf("pooled categorical: %v", g.Str)
	}
}

func TestPoolTieBreak(t *testing.T) {

	mk := func(s string) *dframe.Frame {
		f := dframe.New()
		if err := f.AddCategorical("g", []string{s}); err != nil {
			t.Fatal(err)
		}
		return f
	}

	// Two levels tie ahead of the first frame's value; the smaller
	// level wins.
	p, err := Pool([]*dframe.Frame{mk("c"), mk("b"), mk("b"), mk("a"), mk("a")})
	if err != nil {
		t.Fatal(err)
	}

	g, _ := p.Col("g")
	if g.Str[0] != "a" {
		t.Errorf("tie resolved to %q", g.Str[0])
	}
}
