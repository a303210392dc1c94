package core

import (
	"fmt"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// IDMUS serializes IDs in MUS format.
var IDMUS = idMUS{}

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

// VectorMUS serializes embedding vectors in MUS format.
// Layout: element count followed by raw float32 values.
var VectorMUS = vectorMUS{}

type vectorMUS struct{}

func (s vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (s vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if count < 0 {
		return nil, n, fmt.Errorf("%w: negative vector length %d", ErrInvalidEncoding, count)
	}
	if count > (len(bs)-n)/4 {
		return nil, n, fmt.Errorf("%w: vector length %d exceeds %d remaining bytes", ErrInvalidEncoding, count, len(bs)-n)
	}
	v = make([]float32, count)
	var n1 int
	for i := range v {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (s vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// CatalogEntryMUS serializes CatalogEntry values in MUS format.
// Numeric attributes are written in key order so equal entries encode identically.
var CatalogEntryMUS = catalogEntryMUS{}

type catalogEntryMUS struct{}

func entryStrings(v *CatalogEntry) []*string {
	return []*string{
		&v.ProductID,
		&v.RangeLabel,
		&v.SubrangeLabel,
		&v.Description,
		&v.Brand,
		&v.ProductLine,
		&v.CommercialStatus,
	}
}

func numericKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s catalogEntryMUS) Marshal(v CatalogEntry, bs []byte) (n int) {
	for _, p := range entryStrings(&v) {
		n += ord.String.Marshal(*p, bs[n:])
	}
	keys := numericKeys(v.Numeric)
	n += varint.Int.Marshal(len(keys), bs[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += raw.Float64.Marshal(v.Numeric[k], bs[n:])
	}
	return n
}

func (s catalogEntryMUS) Unmarshal(bs []byte) (v CatalogEntry, n int, err error) {
	var n1 int
	for _, p := range entryStrings(&v) {
		*p, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return v, n, err
		}
	}

	count, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	if count < 0 {
		return v, n, fmt.Errorf("%w: negative attribute count %d", ErrInvalidEncoding, count)
	}
	if count > (len(bs)-n)/9 {
		return v, n, fmt.Errorf("%w: attribute count %d exceeds %d remaining bytes", ErrInvalidEncoding, count, len(bs)-n)
	}
	if count > 0 {
		v.Numeric = make(map[string]float64, count)
	}
	for i := 0; i < count; i++ {
		var key string
		key, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return v, n, err
		}
		var val float64
		val, n1, err = raw.Float64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return v, n, err
		}
		v.Numeric[key] = val
	}
	return v, n, nil
}

func (s catalogEntryMUS) Size(v CatalogEntry) (size int) {
	for _, p := range entryStrings(&v) {
		size += ord.String.Size(*p)
	}
	size += varint.Int.Size(len(v.Numeric))
	for k, val := range v.Numeric {
		size += ord.String.Size(k)
		size += raw.Float64.Size(val)
	}
	return size
}
