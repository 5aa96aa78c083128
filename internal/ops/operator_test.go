// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops_test

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/mlnoga/quadfilter/internal/edge"
	"github.com/mlnoga/quadfilter/internal/enhance"
	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/ops/detect"
	"github.com/mlnoga/quadfilter/internal/ops/report"
	"github.com/mlnoga/quadfilter/internal/ops/tone"
	"github.com/mlnoga/quadfilter/internal/raster"
	"github.com/valyala/fastrand"
)

func testContext() *ops.Context {
	c := ops.NewContext(io.Discard)
	c.MaxThreads = 4
	return c
}

func randomImage(seed uint32, width, height, channels int) *raster.Image {
	var rng fastrand.RNG
	rng.Seed(seed)
	img, err := raster.NewImage(width, height, channels, nil)
	if err != nil {
		panic(err)
	}
	for i := range img.Data {
		img.Data[i] = uint8(rng.Uint32n(256))
	}
	return img
}

func TestSequenceJSONRoundTrip(t *testing.T) {
	seq := ops.NewOpSequence(
		tone.NewOpInvert(true),
		tone.NewOpCLAHE(enhance.CLAHEParams{ClipLimit: 2, TileRows: 4, TileCols: 6}),
		ops.NewOpFanOut(true, tone.NewOpEqualize(true, true), detect.NewOpCanny(edge.CannyParams{Low: 50, High: 150, GaussianSize: 3}, false)),
		report.NewOpMontage(2, 320, "a", "b", "c"),
		ops.NewOpSave("%dir/out/%name.png"),
	)
	bs, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}

	var got ops.OpSequence
	if err := json.Unmarshal(bs, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", string(bs), err)
	}
	if len(got.Steps) != 5 {
		t.Fatalf("got %d steps; want 5", len(got.Steps))
	}
	if _, ok := got.Steps[0].(*tone.OpInvert); !ok {
		t.Errorf("step 0 is %T; want *tone.OpInvert", got.Steps[0])
	}
	if c, ok := got.Steps[1].(*tone.OpCLAHE); !ok || c.ClipLimit != 2 || c.TileRows != 4 || c.TileCols != 6 {
		t.Errorf("step 1 is %#v", got.Steps[1])
	}
	fan, ok := got.Steps[2].(*ops.OpFanOut)
	if !ok || !fan.KeepInput || len(fan.Branches) != 2 {
		t.Fatalf("step 2 is %#v", got.Steps[2])
	}
	if e, ok := fan.Branches[0].(*tone.OpEqualize); !ok || !e.Replicate {
		t.Errorf("branch 0 is %#v", fan.Branches[0])
	}
	if c, ok := fan.Branches[1].(*detect.OpCanny); !ok || c.Low != 50 || c.High != 150 || c.GaussianSize != 3 {
		t.Errorf("branch 1 is %#v", fan.Branches[1])
	}
	if m, ok := got.Steps[3].(*report.OpMontage); !ok || m.Columns != 2 || m.PanelWidth != 320 || len(m.Titles) != 3 {
		t.Errorf("step 3 is %#v", got.Steps[3])
	}
	if s, ok := got.Steps[4].(*ops.OpSave); !ok || s.FilePattern != "%dir/out/%name.png" || !s.Active {
		t.Errorf("step 4 is %#v", got.Steps[4])
	}

	again, err := json.Marshal(&got)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(bs) {
		t.Errorf("second marshal\n%s\ndiffers from first\n%s", again, bs)
	}
}

func TestUnmarshalDefaults(t *testing.T) {
	op, err := ops.UnmarshalOperator(json.RawMessage(`{"type":"clahe","tileRows":4}`))
	if err != nil {
		t.Fatal(err)
	}
	c := op.(*tone.OpCLAHE)
	if !c.Active || c.ClipLimit != 3 || c.TileRows != 4 || c.TileCols != 8 {
		t.Errorf("got %+v; want defaults except tileRows=4", c.CLAHEParams)
	}

	op, err = ops.UnmarshalOperator(json.RawMessage(`{"type":"forEach","operation":{"type":"canny","high":300}}`))
	if err != nil {
		t.Fatal(err)
	}
	fe := op.(*ops.OpForEach)
	if cn, ok := fe.Operation.(*detect.OpCanny); !ok || cn.Low != 100 || cn.High != 300 || cn.GaussianSize != 5 {
		t.Errorf("forEach operation %#v", fe.Operation)
	}

	if _, err := ops.UnmarshalOperator(json.RawMessage(`{"type":"sharpen"}`)); !errors.Is(err, raster.ErrInvalidConfig) {
		t.Errorf("unknown type err=%v; want %v", err, raster.ErrInvalidConfig)
	}
}

func TestInvalidParamsFailBeforeLoading(t *testing.T) {
	loads := int32(0)
	in := func() (*raster.Image, error) {
		atomic.AddInt32(&loads, 1)
		return randomImage(1, 4, 4, 1), nil
	}
	c := testContext()
	bad := []ops.Operator{
		tone.NewOpCLAHE(enhance.CLAHEParams{ClipLimit: 0, TileRows: 8, TileCols: 8}),
		detect.NewOpCanny(edge.CannyParams{Low: 300, High: 200, GaussianSize: 5}, false),
	}
	for _, op := range bad {
		if _, err := op.MakePromises([]ops.Promise{in}, c); !errors.Is(err, raster.ErrInvalidConfig) {
			t.Errorf("%s: err=%v; want %v", op.GetType(), err, raster.ErrInvalidConfig)
		}
	}
	if loads != 0 {
		t.Errorf("input loaded %d times; want 0", loads)
	}
}

func TestFanOutLoadsOnce(t *testing.T) {
	loads := int32(0)
	src := randomImage(3, 20, 10, 3)
	in := func() (*raster.Image, error) {
		atomic.AddInt32(&loads, 1)
		return src, nil
	}

	fan := ops.NewOpFanOut(true,
		tone.NewOpInvert(true),
		tone.NewOpEqualize(true, false),
		tone.NewOpCLAHEDefault(),
		detect.NewOpCannyDefault(),
	)
	c := testContext()
	promises, err := fan.MakePromises([]ops.Promise{in}, c)
	if err != nil {
		t.Fatal(err)
	}
	if len(promises) != 5 {
		t.Fatalf("got %d promises; want 5", len(promises))
	}
	outs, err := ops.MaterializeAll(promises, c.MaxThreads, false)
	if err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Errorf("input loaded %d times; want 1", loads)
	}
	if outs[0] != src {
		t.Errorf("kept input is not the original image")
	}
	if !raster.Equal(outs[1], raster.Invert(src)) {
		t.Errorf("invert branch differs from direct inversion")
	}
	if outs[2].Channels != 1 || outs[4].Channels != 1 || outs[3].Channels != 3 {
		t.Errorf("channels %d %d %d; want 1 3 1", outs[2].Channels, outs[3].Channels, outs[4].Channels)
	}
	if !raster.Equal(src, randomImage(3, 20, 10, 3)) {
		t.Errorf("branches modified the shared input")
	}
}

func TestMaterializeAllJoinsErrors(t *testing.T) {
	errA, errB := errors.New("a failed"), errors.New("b failed")
	img := randomImage(4, 2, 2, 1)
	ins := []ops.Promise{
		func() (*raster.Image, error) { return nil, errA },
		ops.Resolved(img),
		func() (*raster.Image, error) { return nil, errB },
	}
	outs, err := ops.MaterializeAll(ins, 2, false)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("err=%v; want both errors", err)
	}
	if len(outs) != 1 || outs[0] != img {
		t.Errorf("outs=%v; want the one successful image", outs)
	}
}

func TestExpandFilePattern(t *testing.T) {
	img := randomImage(5, 2, 2, 1)
	img.ID = 7
	img.FileName = filepath.Join("photos", "cat.jpg")
	tcs := []struct{ pattern, want string }{
		{"out%d.png", "out7.png"},
		{"%dir/processed/%name_clahe.png", "photos/processed/cat_clahe.png"},
		{"%name-%d.tif", "cat-7.tif"},
	}
	for _, tc := range tcs {
		if got := ops.ExpandFilePattern(tc.pattern, img); got != tc.want {
			t.Errorf("ExpandFilePattern(%q)=%q; want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestProcessFilesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := randomImage(6, 16, 12, 3)
	fileName := filepath.Join(dir, "input.png")
	if err := src.WriteFile(fileName, 95); err != nil {
		t.Fatal(err)
	}

	perFile := ops.NewOpSequence(
		ops.NewOpFanOut(true,
			tone.NewOpInvert(true),
			tone.NewOpEqualize(true, true),
			tone.NewOpCLAHEDefault(),
			detect.NewOpCannyDefault(),
		),
		report.NewOpMontage(0, 0, "original", "inverted", "equalized", "clahe", "canny"),
		ops.NewOpSave("%dir/out/%name_montage.png"),
	)
	seq := ops.NewOpSequence(ops.NewOpLoadMany([]string{filepath.Join(dir, "*.png")}), ops.NewOpForEach(perFile))
	c := testContext()
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ops.MaterializeAll(promises, c.MaxThreads, true); err != nil {
		t.Fatal(err)
	}

	res, err := raster.NewImageFromFile(filepath.Join(dir, "out", "input_montage.png"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 5*(16+4)+4 || res.Height != 12+20+4+4 {
		t.Errorf("montage is %s; want 104x40", res.DimensionsToString())
	}
}

func TestSandboxRejectsOutsidePaths(t *testing.T) {
	c := testContext()
	c.Sandboxed = true
	for _, name := range []string{"/etc/passwd", "../secret.png", "a/../../b.png"} {
		if _, err := ops.NewOpLoad(0, name).MakePromises(nil, c); err == nil {
			t.Errorf("load of %s allowed in sandbox", name)
		}
	}

	dir := t.TempDir()
	escaped := []string{filepath.Join(dir, "%name.png"), "../%name.png", "%dir/%name.png"}
	writers := map[string]func(pattern string) ops.Operator{
		"save":  func(p string) ops.Operator { return ops.NewOpSave(p) },
		"stats": func(p string) ops.Operator { return report.NewOpStats(p) },
	}
	for kind, newOp := range writers {
		for _, pattern := range escaped {
			img := randomImage(8, 2, 2, 1)
			img.FileName = "../up/cat.png" // %dir expands outside the tree
			out, err := newOp(pattern).MakePromises([]ops.Promise{ops.Resolved(img)}, c)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := out[0](); !errors.Is(err, ops.ErrPathOutsideTree) {
				t.Errorf("%s to %s: err=%v; want %v", kind, pattern, err, ops.ErrPathOutsideTree)
			}
		}
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "*")); len(matches) != 0 {
		t.Errorf("sandboxed operators wrote %v", matches)
	}
}

func TestCheckPath(t *testing.T) {
	c := testContext()
	if err := c.CheckPath("/etc/passwd"); err != nil {
		t.Errorf("unsandboxed context rejected absolute path: %v", err)
	}
	c.Sandboxed = true
	tcs := []struct {
		name string
		ok   bool
	}{
		{"images/cat.png", true},
		{"processed/1_inverse.jpg", true},
		{"/etc/passwd", false},
		{"../cat.png", false},
		{"images/../../cat.png", false},
	}
	for _, tc := range tcs {
		err := c.CheckPath(tc.name)
		if (err == nil) != tc.ok {
			t.Errorf("CheckPath(%q)=%v; want ok=%v", tc.name, err, tc.ok)
		}
	}
}
