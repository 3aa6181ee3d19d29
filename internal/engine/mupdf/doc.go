// Package mupdf registers a MuPDF-backed engine under the name "mupdf".
// It needs CGo and is compiled only with the mupdf build tag; without the tag
// importing the package registers nothing.
package mupdf
