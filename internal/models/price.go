package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Price is an optional "starting from" price. The zero value means no price
// is shown. JSON encodes it as null or a decimal string, BSON as null or
// Decimal128.
type Price struct {
	decimal.NullDecimal
}

// NewPrice parses a decimal string such as "9499.00".
func NewPrice(value string) (Price, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Price{}, err
	}
	return Price{decimal.NewNullDecimal(d)}, nil
}

// MustPrice is NewPrice for literals.
func MustPrice(value string) Price {
	p, err := NewPrice(value)
	if err != nil {
		panic(err)
	}
	return p
}

// NoPrice returns the empty price.
func NoPrice() Price {
	return Price{}
}

func (p Price) String() string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.StringFixed(2)
}

func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !p.Valid {
		return bson.TypeNull, nil, nil
	}
	d128, err := primitive.ParseDecimal128(p.Decimal.String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d128)
}

func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*p = Price{}
		return nil
	case bson.TypeDecimal128:
		d128, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("invalid decimal128 price")
		}
		d, err := decimal.NewFromString(d128.String())
		if err != nil {
			return err
		}
		*p = Price{decimal.NewNullDecimal(d)}
	case bson.TypeDouble:
		f, ok := raw.DoubleOK()
		if !ok {
			return fmt.Errorf("invalid double price")
		}
		*p = Price{decimal.NewNullDecimal(decimal.NewFromFloat(f))}
	case bson.TypeInt32:
		i, ok := raw.Int32OK()
		if !ok {
			return fmt.Errorf("invalid int32 price")
		}
		*p = Price{decimal.NewNullDecimal(decimal.NewFromInt32(i))}
	case bson.TypeInt64:
		i, ok := raw.Int64OK()
		if !ok {
			return fmt.Errorf("invalid int64 price")
		}
		*p = Price{decimal.NewNullDecimal(decimal.NewFromInt(i))}
	case bson.TypeString:
		s, ok := raw.StringValueOK()
		if !ok {
			return fmt.Errorf("invalid string price")
		}
		if s == "" {
			*p = Price{}
			return nil
		}
		parsed, err := NewPrice(s)
		if err != nil {
			return err
		}
		*p = parsed
	default:
		return fmt.Errorf("cannot decode %s into a price", t)
	}
	return nil
}
