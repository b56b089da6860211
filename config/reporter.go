package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"critcss/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty report. When destination cannot be created report
// goes to temporary directory.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{file: f, used: make(map[string]int)}, nil
}

type entry struct {
	name string
	// where entry came from, empty for data
	source string
	// what goes into archive, file or directory
	path  string
	data  []byte
	stamp time.Time
}

// Report accumulates everything needed for troubleshooting: configuration,
// logs, coverage and deduplication dumps, produced stylesheets. Archive is
// written on Close with entries in the order they were stored. All methods
// are safe to call on nil report, which means no report was requested.
// Not to be used concurrently.
type Report struct {
	file    *os.File
	entries []entry
	used    map[string]int
	// copies made by StoreCopy, removed on Close
	temps []string
}

// Close writes archive and releases temporary copies.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.finalize()
	err = multierr.Append(err, r.file.Close())
	for _, dir := range r.temps {
		err = multierr.Append(err, os.RemoveAll(dir))
	}
	r.file, r.temps = nil, nil
	return err
}

// Name returns absolute name of the archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// unique returns name not used by any entry yet, repeated names get numeric
// suffix before extension: dedup.txt, dedup-2.txt...
func (r *Report) unique(name string) string {
	if r.used == nil {
		r.used = make(map[string]int)
	}
	r.used[name]++
	n := r.used[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// Store adds file or directory which will be read when report is closed.
func (r *Report) Store(name, location string) {
	if r == nil {
		return
	}
	e := entry{name: r.unique(name), source: location, path: location}
	if p, err := filepath.Abs(location); err == nil {
		e.path = p
	}
	r.entries = append(r.entries, e)
}

// StoreData adds data as a file.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	r.entries = append(r.entries, entry{name: r.unique(name), data: bytes.Clone(data), stamp: time.Now()})
}

// StoreDump adds text form of the dump as a file. Dump is not rendered when
// there is no report.
func (r *Report) StoreDump(name string, dump fmt.Stringer) {
	if r == nil {
		return
	}
	r.StoreData(name, []byte(dump.String()))
}

// StoreCopy adds a copy of file or directory as it is at the time of the
// call.
func (r *Report) StoreCopy(name, location string) error {
	if r == nil {
		return nil
	}
	src, err := filepath.Abs(location)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-r-")
	if err != nil {
		return err
	}
	r.temps = append(r.temps, dir)

	e := entry{name: r.unique(name), source: location, path: dir, stamp: time.Now()}
	switch {
	case info.Mode().IsRegular():
		if e.path, err = copyFile(dir, src, info.ModTime()); err != nil {
			return err
		}
	case info.IsDir():
		if err := copyTree(dir, src); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unable to store %s: not a file or directory", location)
	}
	r.entries = append(r.entries, e)
	return nil
}

func copyFile(dir, src string, modTime time.Time) (dst string, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	dst = filepath.Join(dir, filepath.Base(src))

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, os.Chtimes(dst, modTime, modTime)
}

// walkFiles calls fn for every regular file under root with its slash
// separated relative path. Links, sockets and such are ignored.
func walkFiles(root string, fn func(path, rel string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return fn(p, filepath.ToSlash(rel), info)
	})
}

func copyTree(dir, src string) error {
	return walkFiles(src, func(p, rel string, info fs.FileInfo) error {
		_, err := copyFile(filepath.Dir(filepath.Join(dir, filepath.FromSlash(rel))), p, info.ModTime())
		return err
	})
}

func (r *Report) finalize() error {
	arc := zip.NewWriter(r.file)

	if err := saveFile(arc, "MANIFEST", time.Now(), r.manifest()); err != nil {
		arc.Close()
		return err
	}
	for _, e := range r.entries {
		if err := e.save(arc); err != nil {
			arc.Close()
			return fmt.Errorf("unable to put %s into report: %w", e.name, err)
		}
	}
	return arc.Close()
}

func (r *Report) manifest() io.Reader {
	now := time.Now()
	buf := new(bytes.Buffer)
	for _, e := range r.entries {
		stamp := e.stamp
		if stamp.IsZero() {
			stamp = now
		}
		source := e.source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(buf, "%s\t%s\t%s\n", stamp.UTC().Format(time.RFC3339), e.name, source)
	}
	return buf
}

func (e entry) save(arc *zip.Writer) error {
	if e.source == "" {
		return saveFile(arc, e.name, e.stamp, bytes.NewReader(e.data))
	}
	info, err := os.Stat(e.path)
	if err != nil {
		// absent files are not reported
		return nil
	}
	if info.Mode().IsRegular() {
		return saveLocal(arc, e.name, e.path, info.ModTime())
	}
	if !info.IsDir() {
		return nil
	}
	return walkFiles(e.path, func(p, rel string, info fs.FileInfo) error {
		return saveLocal(arc, path.Join(e.name, rel), p, info.ModTime())
	})
}

func saveLocal(arc *zip.Writer, name, src string, t time.Time) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return saveFile(arc, name, t, f)
}

func saveFile(arc *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
