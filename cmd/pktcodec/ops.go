// Copyright (c) 2024 Neomantra Corp

package main

import (
	"fmt"
	"io"
	"os"

	segjson "github.com/segmentio/encoding/json"

	pkt "github.com/neomantra/pktschema"
	"github.com/neomantra/pktschema/pktjson"
)

func loadSchema(schemaFile string) (*pkt.Schema, error) {
	data, err := os.ReadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	schema, err := pktjson.Load(data, pktjson.Registry{})
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return schema, nil
}

func readRecordJSON(r io.Reader) (*pkt.MapRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading record JSON: %w", err)
	}
	var values map[string]any
	if err := segjson.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parsing record JSON: %w", err)
	}
	return pkt.NewMapRecord("", values), nil
}

func runEncode(schemaFile, outFile string, zstd bool) error {
	schema, err := loadSchema(schemaFile)
	if err != nil {
		return err
	}
	rec, err := readRecordJSON(os.Stdin)
	if err != nil {
		return err
	}

	out, n, err := pkt.Encode(schema, rec, nil, 0)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	writer, closer, err := pkt.MakeCompressedWriter(outFile, zstd)
	if err != nil {
		return fmt.Errorf("opening %s: %w", outFile, err)
	}
	defer closer()

	if _, err := writer.Write(out[:n]); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}
	return nil
}

func runDecode(schemaFile, inFile string, zstd bool) error {
	schema, err := loadSchema(schemaFile)
	if err != nil {
		return err
	}

	reader, closer, err := pkt.MakeCompressedReader(inFile, zstd)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inFile, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	buf, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inFile, err)
	}

	offset := 0
	for offset < len(buf) {
		rec, n, err := pkt.Decode(schema, buf, offset)
		if err != nil {
			return fmt.Errorf("decoding at offset %d: %w", offset, err)
		}
		if n == 0 {
			return fmt.Errorf("decoding at offset %d: zero-length record", offset)
		}
		offset += n

		mr, ok := rec.(*pkt.MapRecord)
		if !ok {
			return fmt.Errorf("decoding at offset %d: unexpected record type %T", offset, rec)
		}
		jstr, err := segjson.Marshal(mr.Values())
		if err != nil {
			return fmt.Errorf("marshalling record: %w", err)
		}
		fmt.Printf("%s\n", jstr)
	}
	return nil
}

func runCalcsize(schemaFile string) error {
	schema, err := loadSchema(schemaFile)
	if err != nil {
		return err
	}
	rec, err := readRecordJSON(os.Stdin)
	if err != nil {
		return err
	}

	n, err := pkt.CalcSize(schema, rec)
	if err != nil {
		return fmt.Errorf("calculating size: %w", err)
	}
	fmt.Printf("%d\n", n)
	return nil
}
