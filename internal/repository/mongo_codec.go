package repository

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var tUint64 = reflect.TypeOf(uint64(0))

// newMongoRegistry stores uint64 values as int64 when they fit and as
// Decimal128 above math.MaxInt64, so every timestamp survives a round trip.
func newMongoRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(tUint64, bsoncodec.ValueEncoderFunc(encodeUint64))
	reg.RegisterTypeDecoder(tUint64, bsoncodec.ValueDecoderFunc(decodeUint64))
	return reg
}

func encodeUint64(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tUint64 {
		return bsoncodec.ValueEncoderError{Name: "Uint64EncodeValue", Types: []reflect.Type{tUint64}, Received: val}
	}
	u := val.Uint()
	if u <= math.MaxInt64 {
		return vw.WriteInt64(int64(u))
	}
	d, err := primitive.ParseDecimal128(strconv.FormatUint(u, 10))
	if err != nil {
		return fmt.Errorf("encode %d as decimal128: %w", u, err)
	}
	return vw.WriteDecimal128(d)
}

func decodeUint64(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tUint64 {
		return bsoncodec.ValueDecoderError{Name: "Uint64DecodeValue", Types: []reflect.Type{tUint64}, Received: val}
	}

	switch vr.Type() {
	case bsontype.Int32:
		i, err := vr.ReadInt32()
		if err != nil {
			return err
		}
		if i < 0 {
			return fmt.Errorf("%d overflows uint64", i)
		}
		val.SetUint(uint64(i))
	case bsontype.Int64:
		i, err := vr.ReadInt64()
		if err != nil {
			return err
		}
		if i < 0 {
			return fmt.Errorf("%d overflows uint64", i)
		}
		val.SetUint(uint64(i))
	case bsontype.Decimal128:
		d, err := vr.ReadDecimal128()
		if err != nil {
			return err
		}
		n, exp, err := d.BigInt()
		if err != nil {
			return fmt.Errorf("decode decimal128 %s: %w", d, err)
		}
		if exp > 0 {
			n.Mul(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
		}
		if exp < 0 || !n.IsUint64() {
			return fmt.Errorf("decimal128 %s is not a uint64", d)
		}
		val.SetUint(n.Uint64())
	default:
		return fmt.Errorf("cannot decode %v into uint64", vr.Type())
	}
	return nil
}
