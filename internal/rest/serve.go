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

package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/quadfilter/internal/config"
	"github.com/mlnoga/quadfilter/internal/ops"
	_ "github.com/mlnoga/quadfilter/internal/ops/detect" // registers canny
	_ "github.com/mlnoga/quadfilter/internal/ops/report" // registers stats, montage
	_ "github.com/mlnoga/quadfilter/internal/ops/tone"   // registers invert, equalize, clahe
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Operators which can be applied to a single uploaded image
var transformTypes = map[string]bool{"invert": true, "equalize": true, "clahe": true, "canny": true, "stats": true}

type server struct {
	cfg *config.Config
	log io.Writer
}

// Creates the HTTP handler for the API
func NewRouter(cfg *config.Config, log io.Writer) *gin.Engine {
	s := &server{cfg: cfg, log: log}
	r := gin.New()
	r.Use(gin.LoggerWithWriter(log), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/process", s.postProcess)
			v1.POST("/transform/:op", s.postTransform)
		}
	}
	return r
}

// Listens and serves the API on the given address until an error occurs
func Serve(addr string, cfg *config.Config, log io.Writer) error {
	fmt.Fprintf(log, "Serving API on %s\n", addr)
	return NewRouter(cfg, log).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Creates a sandboxed operator context which logs into w
func (s *server) newContext(w io.Writer) *ops.Context {
	ctx := ops.NewContext(w)
	ctx.Sandboxed = true
	ctx.JPEGQuality = s.cfg.Output.JPEGQuality
	if s.cfg.Threads > 0 {
		ctx.MaxThreads = s.cfg.Threads
	}
	return ctx
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Serializes concurrent writes from operators, and flushes each one to the client
type flushWriter struct {
	sync.Mutex
	w http.ResponseWriter
}

func (fw *flushWriter) Write(p []byte) (n int, err error) {
	fw.Lock()
	defer fw.Unlock()
	n, err = fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

type postProcessArgs struct {
	FilePatterns []string        `json:"filePatterns" binding:"required"`
	Sequence     json.RawMessage `json:"sequence" binding:"required"`
}

// Applies an operator sequence to each file matching the patterns, streaming the log as plain text
func (s *server) postProcess(c *gin.Context) {
	var args postProcessArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perFile, err := ops.UnmarshalOperator(args.Sequence)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/plain")
	c.Status(http.StatusOK)
	logWriter := &flushWriter{w: c.Writer}

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := s.newContext(logWriter)
	seq := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns), ops.NewOpForEach(perFile))
	promises, err := seq.MakePromises(nil, ctx)
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	if _, err := ops.MaterializeAll(promises, ctx.MaxThreads, true); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	fmt.Fprintf(logWriter, "Done.\n")
}

// Applies a single operator to the uploaded image, answering with the PNG encoded result.
// Operator parameters come as JSON in the optional form field params
func (s *server) postTransform(c *gin.Context) {
	opType := c.Param("op")
	factory := ops.GetOperatorFactory(opType)
	if !transformTypes[opType] || factory == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown transform %q", opType)})
		return
	}
	op := factory()
	if params := c.PostForm("params"); params != "" {
		if err := json.Unmarshal([]byte(params), op); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()
	img, err := raster.Decode(file, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img.FileName = header.Filename

	ctx := s.newContext(s.log)
	promises, err := op.MakePromises([]ops.Promise{ops.Resolved(img)}, ctx)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	res, err := promises[0]()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := res.Encode(&buf, raster.FormatPNG, 0); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// Maps configuration errors to bad requests, sandbox violations to forbidden,
// everything else to server errors
func statusFor(err error) int {
	switch {
	case errors.Is(err, raster.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ops.ErrPathOutsideTree):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
