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

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/quadfilter/internal/raster"
	"github.com/mlnoga/quadfilter/internal/stats"
	"github.com/pbnjay/memory"
)

// An execution context for operators
type Context struct {
	Log         io.Writer
	MemoryMB    int    // memory.TotalMemory()/1024/1024
	CPU         string // processor brand name, for log output
	MaxThreads  int    `json:"maxThreads"`
	JPEGQuality int    `json:"jpegQuality"`
	Sandboxed   bool   // restrict file access to relative paths within the working tree
}

func NewContext(log io.Writer) *Context {
	return &Context{
		Log:         log,
		MemoryMB:    int(memory.TotalMemory() / 1024 / 1024),
		CPU:         cpuid.CPU.BrandName,
		MaxThreads:  runtime.GOMAXPROCS(0),
		JPEGQuality: 95,
	}
}

// A promise for an image. Returns a materialized image, or an error
type Promise func() (img *raster.Image, err error)

// Wraps an already materialized image into a promise
func Resolved(img *raster.Image) Promise {
	return func() (*raster.Image, error) { return img, nil }
}

// Materializes all promises with given concurrency limit. Failed promises
// are dropped from the outputs, and their errors are joined
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*raster.Image, err error) {
	if len(ins) == 0 {
		return nil, nil
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	if !forget {
		outs = make([]*raster.Image, len(ins))
	}
	limiter := make(chan bool, maxThreads)
	errs := make(chan error, len(ins))
	for i, in := range ins {
		limiter <- true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			img, err := theIn() // materialize the promise
			if err != nil {
				errs <- err
				return
			}
			if !forget {
				outs[i] = img
			}
			errs <- nil
		}(i, in)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	var all []error
	for i := 0; i < len(ins); i++ { // collect errors
		if e := <-errs; e != nil {
			all = append(all, e)
		}
	}
	return RemoveNils(outs), errors.Join(all...)
}

// Remove nils from an array of images, editing the underlying array in place
func RemoveNils(imgs []*raster.Image) []*raster.Image {
	o := 0
	for i := 0; i < len(imgs); i++ {
		if imgs[i] != nil {
			imgs[o] = imgs[i]
			o++
		}
	}
	for i := o; i < len(imgs); i++ {
		imgs[i] = nil
	}
	return imgs[:o]
}

// A general image processing operator: takes n promises as inputs,
// and produces m promises as output or an error
type Operator interface {
	GetType() string
	IsActive() bool
	MakePromises(ins []Promise, c *Context) (outs []Promise, err error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool  { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories = map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op := f()
	t := op.GetType()
	if GetOperatorFactory(t) != nil {
		panic(fmt.Sprintf("error: re-registering operator key %s\n", t))
	}
	operatorFactories[t] = f
}

// Returns the registered operator type strings, for help output
func OperatorTypes() []string {
	res := make([]string, 0, len(operatorFactories))
	for t := range operatorFactories {
		res = append(res, t)
	}
	return res
}

// Unmarshals a single polymorphic operator from JSON, dispatching on its type field
func UnmarshalOperator(raw json.RawMessage) (Operator, error) {
	var base OpBase
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, err
	}
	factory := GetOperatorFactory(base.Type)
	if factory == nil {
		return nil, fmt.Errorf("%w: unknown operator type '%s' in raw JSON message '%s'", raster.ErrInvalidConfig, base.Type, string(raw))
	}
	op := factory()
	if err := json.Unmarshal(raw, op); err != nil {
		return nil, err
	}
	return op, nil
}

// Unmarshals a list of polymorphic operators
func unmarshalOperators(raws []json.RawMessage) (ops []Operator, err error) {
	for _, raw := range raws {
		op, err := UnmarshalOperator(raw)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// A unary image processing operator: given n promises as inputs,
// applies itself to each of them individually and returns n output promises or an error
type OperatorUnary interface {
	Operator
	Apply(img *raster.Image, c *Context) (imgOut *raster.Image, err error)
}

// Abstract base type for unary operators. Uses golang workaround for abstract classes
// from https://golangbyexample.com/go-abstract-class/
type OpUnaryBase struct {
	OpBase
	Apply func(img *raster.Image, c *Context) (imgOut *raster.Image, err error) `json:"-"`
}

func (op *OpUnaryBase) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator with %d inputs", op.Type, len(ins))
	}
	outs = make([]Promise, len(ins))
	for i, in := range ins {
		outs[i] = op.MakePromise(in, c)
	}
	return outs, nil
}

func (op *OpUnaryBase) MakePromise(in Promise, c *Context) (out Promise) {
	return func() (img *raster.Image, err error) {
		if img, err = in(); err != nil { // materialize input promise
			return nil, err
		}
		if !op.Active {
			return img, nil
		}
		return op.Apply(img, c) // apply unary operator
	}
}

// Load a single image from a single filename. Takes zero inputs, produces one output
type OpLoad struct {
	OpBase
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault() }) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "") }

func NewOpLoad(id int, fileName string) *OpLoad {
	return &OpLoad{
		OpBase:   OpBase{Type: "load", Active: true},
		ID:       id,
		FileName: fileName,
	}
}

// Load image from a file. Takes no inputs
func (op *OpLoad) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	if err := c.CheckPath(op.FileName); err != nil {
		return nil, err
	}

	out := func() (img *raster.Image, err error) {
		return op.Apply(c) // no inputs to materialize
	}
	return []Promise{out}, nil
}

// Returned for file names a sandboxed context may not touch
var ErrPathOutsideTree = errors.New("filename outside current directory tree")

// Checks whether the operators running in this context may read or write the
// given file. Unsandboxed contexts may access any path
func (c *Context) CheckPath(name string) error {
	if c.Sandboxed && !isPathAllowed(name) {
		return fmt.Errorf("%w: %s", ErrPathOutsideTree, name)
	}
	return nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

func (op *OpLoad) Apply(c *Context) (img *raster.Image, err error) {
	img, err = raster.NewImageFromFile(op.FileName, op.ID)
	if err != nil {
		return nil, err
	}

	s := stats.NewChannelStats(img.Data)
	warning := ""
	if s.Max == s.Min {
		warning = "; WARNING uniform intensity"
	}
	fmt.Fprintf(c.Log, "%d: Loaded %s image with %v from %s%s\n",
		img.ID, img.DimensionsToString(), s, img.FileName, warning)
	return img, nil
}

// Load many images from a slice of filename patterns with wildcards.
// Takes zero inputs, produces n outputs
type OpLoadMany struct {
	OpBase
	FilePatterns []string `json:"filePatterns"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadManyDefault() }) } // register the operator for JSON decoding

func NewOpLoadManyDefault() *OpLoadMany { return NewOpLoadMany(nil) }

func NewOpLoadMany(filePatterns []string) *OpLoadMany {
	return &OpLoadMany{
		OpBase:       OpBase{Type: "loadMany", Active: true},
		FilePatterns: filePatterns,
	}
}

// Turn filename wildcards into list of file load operators
func (op *OpLoadMany) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	for _, pattern := range op.FilePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if c.CheckPath(match) != nil {
				fmt.Fprintf(c.Log, "Pattern match outside current directory tree, skipping\n")
				continue
			}
			opLoad := NewOpLoad(len(outs), match)
			promises, err := opLoad.MakePromises(nil, c)
			if err != nil {
				return nil, err
			}
			outs = append(outs, promises[0])
		}
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("%s operator with no files to load from pattern %v", op.Type, op.FilePatterns)
	}
	fmt.Fprintf(c.Log, "Found %d files.\n", len(outs))
	return outs, nil
}

// Saves given promise under a given filename. The pattern expands %d to the image id,
// %dir to the directory and %name to the base name without extension of the source file.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filenamePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filenamePattern != ""}},
		FilePattern: filenamePattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	def.Active = true // a pattern given in JSON enables saving
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

// Expands the file pattern for the given image
func ExpandFilePattern(pattern string, img *raster.Image) string {
	dir, name := ".", fmt.Sprintf("img%d", img.ID)
	if img.FileName != "" {
		dir = filepath.Dir(img.FileName)
		base := filepath.Base(img.FileName)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	r := strings.NewReplacer("%dir", dir, "%name", name, "%d", strconv.Itoa(img.ID))
	return r.Replace(pattern)
}

func (op *OpSave) Apply(img *raster.Image, c *Context) (result *raster.Image, err error) {
	if op.FilePattern == "" {
		return img, nil
	}
	fileName := ExpandFilePattern(op.FilePattern, img)
	if err := c.CheckPath(fileName); err != nil {
		return nil, fmt.Errorf("%d: %w", img.ID, err)
	}
	kind := "color"
	if img.Channels == 1 {
		kind = "mono"
	}
	fmt.Fprintf(c.Log, "%d: Writing %s pixel %s image to %s\n", img.ID, img.DimensionsToString(), kind, fileName)
	if err = img.WriteFile(fileName, c.JPEGQuality); err != nil {
		return nil, fmt.Errorf("%d: Error writing to file %s: %w", img.ID, fileName, err)
	}
	return img, nil
}

// Applies a sequence of operators to a promise. Number of inputs, outputs as per the chained steps
type OpSequence struct {
	OpBase
	Steps    []Operator        `json:"-"`     // the actual steps
	StepsRaw []json.RawMessage `json:"steps"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault() }) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase: OpBase{Type: "seq", Active: len(steps) > 0},
		Steps:  steps,
	}
}

// Unmarshals a sequence of polymorphic operators from JSON.
// Uses temporary op.StepsRaw inspired by https://alexkappa.medium.com/json-polymorphism-in-go-4cade1e58ed1
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	steps, err := unmarshalOperators(op.StepsRaw)
	if err != nil {
		return err
	}
	op.Steps, op.StepsRaw = append(op.Steps, steps...), nil
	return nil
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps = append(op.Steps, steps...)
	op.Active = len(op.Steps) > 0
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	return marshalWithOperators(&op.OpBase, "steps", op.Steps)
}

// Writes type, active flag and a list of polymorphic operators under the given key
func marshalWithOperators(base *OpBase, key string, ops []Operator) ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner, err := json.Marshal(base.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	fmt.Fprintf(&buf, ", \"active\":%v, \"%s\":", base.Active, key)
	if ops == nil {
		ops = []Operator{}
	}
	inner, err = json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpSequence) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	return op.applyRecursive(op.Steps, ins, c)
}

func (op *OpSequence) applyRecursive(steps []Operator, ins []Promise, c *Context) (outs []Promise, err error) {
	if len(steps) == 0 {
		return ins, nil
	}
	ins, err = steps[0].MakePromises(ins, c)
	if err != nil {
		return nil, err
	}
	return op.applyRecursive(steps[1:], ins, c)
}

// Applies a single operator to each input. Takes n inputs, produces n outputs
type OpForEach struct {
	OpBase
	Operation    Operator        `json:"-"`
	OperationRaw json.RawMessage `json:"operation"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpForEachDefault() }) } // register the operator for JSON decoding

func NewOpForEachDefault() *OpForEach { return NewOpForEach(nil) }

func NewOpForEach(operation Operator) *OpForEach {
	return &OpForEach{
		OpBase:    OpBase{Type: "forEach", Active: operation != nil},
		Operation: operation,
	}
}

func (op *OpForEach) UnmarshalJSON(b []byte) error {
	type alias OpForEach
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	if len(op.OperationRaw) == 0 || string(op.OperationRaw) == "null" {
		return nil
	}
	operation, err := UnmarshalOperator(op.OperationRaw)
	if err != nil {
		return err
	}
	op.Operation, op.OperationRaw = operation, nil
	return nil
}

func (op *OpForEach) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(op.Operation)
	if err != nil {
		return nil, err
	}
	type alias OpForEach
	a := alias(*op)
	a.OperationRaw = inner
	return json.Marshal(a)
}

// Applies the operation to all inputs individually
func (op *OpForEach) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return ins, nil
	}
	if op.Operation == nil {
		return nil, fmt.Errorf("%s operator has no operation to apply", op.Type)
	}
	for _, in := range ins {
		out, err := op.Operation.MakePromises([]Promise{in}, c)
		if err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, fmt.Errorf("%s operator needs exactly one promise from embedded operation", op.Type)
		}
		outs = append(outs, out[0])
	}
	return outs, nil
}

// Feeds each input into several branches, and concatenates their outputs per input.
// The input is materialized only once and shared by all branches, so branch operators
// must not modify their input image. With KeepInput, the input itself precedes the
// branch outputs. Takes n inputs, produces n*(branches+keep) outputs
type OpFanOut struct {
	OpBase
	KeepInput   bool              `json:"keepInput"`
	Branches    []Operator        `json:"-"`
	BranchesRaw []json.RawMessage `json:"branches"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpFanOutDefault() }) } // register the operator for JSON decoding

func NewOpFanOutDefault() *OpFanOut { return NewOpFanOut(false) }

func NewOpFanOut(keepInput bool, branches ...Operator) *OpFanOut {
	return &OpFanOut{
		OpBase:    OpBase{Type: "fanOut", Active: true},
		KeepInput: keepInput,
		Branches:  branches,
	}
}

func (op *OpFanOut) UnmarshalJSON(b []byte) error {
	type alias OpFanOut
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	branches, err := unmarshalOperators(op.BranchesRaw)
	if err != nil {
		return err
	}
	op.Branches, op.BranchesRaw = append(op.Branches, branches...), nil
	return nil
}

func (op *OpFanOut) MarshalJSON() ([]byte, error) {
	bs, err := marshalWithOperators(&op.OpBase, "branches", op.Branches)
	if err != nil {
		return nil, err
	}
	// splice in the keepInput flag
	return append(bs[:len(bs)-1], []byte(fmt.Sprintf(", \"keepInput\":%v}", op.KeepInput))...), nil
}

func (op *OpFanOut) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(op.Branches) == 0 && !op.KeepInput {
		return nil, fmt.Errorf("%s operator without branches", op.Type)
	}
	for _, in := range ins {
		shared := Memoize(in)
		if op.KeepInput {
			outs = append(outs, shared)
		}
		for _, branch := range op.Branches {
			bouts, err := branch.MakePromises([]Promise{shared}, c)
			if err != nil {
				return nil, err
			}
			outs = append(outs, bouts...)
		}
	}
	return outs, nil
}

// Returns a promise which materializes the given one at most once, and hands out
// the same result to all callers
func Memoize(in Promise) Promise {
	var once sync.Once
	var img *raster.Image
	var err error
	return func() (*raster.Image, error) {
		once.Do(func() { img, err = in() })
		return img, err
	}
}
