package transport

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
)

// BarcodePrefix marks Base45-encoded DCC content per the HCERT spec.
const BarcodePrefix = "HC1:"

// zlib stream marker; content not starting with it is treated as
// uncompressed (older issuers skipped the compression step).
const zlibMagic = 0x78

// Serialize turns a signed CWT into barcode text: zlib-compress,
// Base45-encode, prepend the HC1 prefix.
func Serialize(signed []byte) (string, error) {
	if len(signed) == 0 {
		return "", fmt.Errorf("nothing to serialize")
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(signed); err != nil {
		return "", fmt.Errorf("failed to compress signed CWT: %v", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress signed CWT: %v", err)
	}

	return BarcodePrefix + Base45Encode(buf.Bytes()), nil
}

// Deserialize is the inverse of Serialize. A missing HC1 prefix is
// tolerated; corrupt Base45 or zlib content is not.
func Deserialize(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), BarcodePrefix)

	data, err := Base45Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode barcode content: %v", err)
	}

	if len(data) == 0 || data[0] != zlibMagic {
		return data, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress barcode content: %v", err)
	}
	defer zr.Close()

	signed, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress barcode content: %v", err)
	}
	return signed, nil
}
