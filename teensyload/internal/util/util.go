// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// FatalErr prints an error description and exits the program if the
// err != nil.
func FatalErr(what string, err error) {
	if err == nil {
		return
	}
	s := err.Error() + "\n"
	if what != "" {
		s = what + ": " + s
	}
	os.Stderr.WriteString(s)
	os.Exit(1)
}

// Sleep pauses the current goroutine for at least the duration d or until
// the ctx is done. It returns ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DirName returns the last element of the path to the current working
// directory.
func DirName() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir = filepath.Base(dir)
	if dir == "/" || dir == "." {
		dir = ""
	}
	return dir, nil
}

// Module returns the last element of the module path declared in the go.mod
// file of the current module.
func Module() (string, error) {
	out, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		return "", err
	}
	gomod := filepath.Clean(string(bytes.TrimRightFunc(out, unicode.IsSpace)))
	if gomod == "" || gomod == "." || gomod == os.DevNull {
		return "", errors.New("go.mod file not found in current directory or any parent directory")
	}
	f, err := os.Open(gomod)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fs := bytes.Fields(sc.Bytes())
		if len(fs) >= 2 && string(fs[0]) == "module" {
			return modBase(string(fs[1])), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("there is no module directive in " + gomod)
}

func modBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// InOutFiles infers the name of the input and output files from the name of
// the current module or working directory if the inName is an empty string.
func InOutFiles(inName, inSuffix, outName, outSuffix string) (string, string, error) {
	if inName == "" {
		var err error
		fs, serr := os.Stat("go.mod")
		if serr != nil || !fs.Mode().IsRegular() {
			inName, err = DirName()
		} else {
			inName, err = Module()
		}
		if err != nil {
			return "", "", err
		}
		if inName == "" {
			return "", "", errors.New("cannot infer the input file name")
		}
		inName += inSuffix
	}
	if outName == "" {
		outName = strings.TrimSuffix(inName, inSuffix) + outSuffix
	}
	return inName, outName, nil
}
