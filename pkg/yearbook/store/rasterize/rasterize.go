// Package rasterize turns multi-page source documents into per-page
// raster images by shelling out to the poppler utilities (pdfinfo,
// pdftoppm). The tools must be on PATH.
package rasterize

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Rasterizer extracts page counts and page images from a source
// document on local disk.
type Rasterizer interface {
	// PageCount returns the number of pages in the source document.
	PageCount(ctx context.Context, sourcePath string) (int, error)

	// RenderPage renders the zero-based page index as a PNG into w.
	RenderPage(ctx context.Context, sourcePath string, index int, w io.Writer) error
}

// Poppler is a Rasterizer backed by the poppler command-line tools.
type Poppler struct {
	// DPI used when rendering pages. Zero means pdftoppm's default.
	DPI int
}

// NewPoppler creates a poppler-backed rasterizer.
func NewPoppler() *Poppler {
	return &Poppler{DPI: 150}
}

// PageCount parses the "Pages:" line out of pdfinfo output.
func (p *Poppler) PageCount(ctx context.Context, sourcePath string) (int, error) {
	out, err := exec.CommandContext(ctx, "pdfinfo", sourcePath).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo %s: %w", filepath.Base(sourcePath), err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count %q: %w", line, err)
		}
		if count < 1 {
			return 0, fmt.Errorf("document has no pages")
		}
		return count, nil
	}

	return 0, fmt.Errorf("pdfinfo output has no page count")
}

// RenderPage renders one page to PNG. pdftoppm only writes to files, so
// the render goes through a temp file that is removed before returning.
func (p *Poppler) RenderPage(ctx context.Context, sourcePath string, index int, w io.Writer) error {
	dir, err := os.MkdirTemp("", "rasterize-*")
	if err != nil {
		return fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// pdftoppm page numbers are one-based.
	pageNum := strconv.Itoa(index + 1)
	args := []string{"-png", "-f", pageNum, "-l", pageNum}
	if p.DPI > 0 {
		args = append(args, "-r", strconv.Itoa(p.DPI))
	}
	prefix := filepath.Join(dir, "page")
	args = append(args, sourcePath, prefix)

	if out, err := exec.CommandContext(ctx, "pdftoppm", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("pdftoppm page %d: %w: %s", index, err, strings.TrimSpace(string(out)))
	}

	// pdftoppm pads the page number in the output name depending on the
	// document's total page count, so glob rather than guess.
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(matches) != 1 {
		return fmt.Errorf("pdftoppm page %d: expected one output file, got %d", index, len(matches))
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return fmt.Errorf("open rendered page %d: %w", index, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy rendered page %d: %w", index, err)
	}
	return nil
}
