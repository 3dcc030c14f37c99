// Copyright (c) 2025 Neomantra Corp
// Reader/Writer Compression helpers for packet streams
//
// Adapted from Neomantra's Gist, but simplified to only support zstd, then
// extended with magic-number sniffing so pktcodec can tell a zstd-framed
// packet stream from a raw one on stdin, where there is no filename suffix
// to go by:
//
// https://gist.github.com/neomantra/691a6028cdf2ac3fc6ec97d00e8ea802
//

package pkt

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the 4-byte frame magic number every zstd frame starts with
// (RFC 8478 section 3.1.1), used to sniff compression on a stream with no
// filename extension to go by, such as stdin.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

///////////////////////////////////////////////////////////////////////////////

// MakeCompressedWriter returns an io.Writer over a packet-stream destination:
// filename, or os.Stdout if filename is "-". It also returns a closing
// function to defer and any error encountered opening the destination.
// If the filename ends in ".zst" or ".zstd", or if useZstd is true, records
// that pktcodec Encodes into the stream are zstd-compressed as they are
// written.
func MakeCompressedWriter(filename string, useZstd bool) (io.Writer, func(), error) {
	var writer io.Writer
	var closer io.Closer
	fileCloser := func() {
		if closer != nil {
			closer.Close()
		}
	}
	if filename != "-" {
		if file, err := os.Create(filename); err == nil {
			writer, closer = file, file
		} else {
			return nil, nil, err
		}
	} else {
		writer, closer = os.Stdout, nil
	}

	if useZstd || hasZstdSuffix(filename) {
		zstdWriter, err := zstd.NewWriter(writer)
		if err != nil {
			fileCloser()
			return nil, nil, err
		}
		zstdCloser := func() {
			zstdWriter.Close()
			fileCloser()
		}
		return zstdWriter, zstdCloser, nil
	}
	return writer, fileCloser, nil
}

///////////////////////////////////////////////////////////////////////////////

// MakeCompressedReader returns an io.Reader over a packet-stream source:
// filename, or os.Stdin if filename is "-". It also returns a closer to
// defer. If the filename ends in ".zst" or ".zstd", or if useZstd is true,
// the stream is zstd-decompressed before pktcodec ever calls Decode on it.
// When neither signal is present -- the common case for a piped stdin
// source, which has no filename extension -- the first four bytes are
// peeked and compared against the zstd frame magic number, so a compressed
// packet stream on stdin is still recognized without the caller having to
// pass useZstd explicitly.
func MakeCompressedReader(filename string, useZstd bool) (io.Reader, io.Closer, error) {
	var reader io.Reader
	var closer io.Closer

	if filename != "-" {
		if file, err := os.Open(filename); err == nil {
			reader, closer = file, file
		} else {
			return nil, nil, err
		}
	} else {
		reader, closer = os.Stdin, nil
	}

	buffered := bufio.NewReader(reader)
	if !useZstd && !hasZstdSuffix(filename) {
		if magic, err := buffered.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
			useZstd = true
		}
	}

	if !useZstd {
		return buffered, closer, nil
	}
	zstdReader, err := zstd.NewReader(buffered)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	return zstdReader, closer, nil
}

func hasZstdSuffix(filename string) bool {
	return strings.HasSuffix(filename, ".zst") || strings.HasSuffix(filename, ".zstd")
}
