// Package ckkswrapper runs the first layer of a network on CKKS-encrypted inputs.
//
// The client encrypts the encoded input vector; every neuron of the first layer is
// one plaintext-ciphertext product followed by a rotate-and-add inner sum, so the
// circuit has depth one and needs no bootstrapping or relinearization.
package ckkswrapper

import (
	"math/bits"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"

	"polarnet/nn"
)

// DefaultLogN gives 4096 slots, far more than any polar network's input layer.
const DefaultLogN = 13

// HeContext bundles the parameters, keys and evaluator of one CKKS session.
type HeContext struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor
	Evaluator *hefloat.Evaluator

	// maxInner is the widest inner sum the Galois keys can fold.
	maxInner int
}

// NewHeContext builds a context with DefaultLogN. It panics if key generation fails.
func NewHeContext() *HeContext {
	he, err := NewHeContextWithLogN(DefaultLogN)
	if err != nil {
		panic(err)
	}
	return he
}

// NewHeContextWithLogN builds a context with ring degree 2^logN and Galois keys for
// every power-of-two rotation below the slot count.
func NewHeContextWithLogN(logN int) (*HeContext, error) {
	params, err := hefloat.NewParametersFromLiteral(
		hefloat.ParametersLiteral{
			LogN:            logN,
			LogQ:            []int{55, 40},
			LogP:            []int{61},
			LogDefaultScale: 40,
		})
	if err != nil {
		return nil, errors.Wrap(err, "ckks parameters")
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()

	var galEls []uint64
	for k := 1; k < params.MaxSlots(); k <<= 1 {
		galEls = append(galEls, params.GaloisElement(k))
	}
	evk := rlwe.NewMemEvaluationKeySet(kgen.GenRelinearizationKeyNew(sk), kgen.GenGaloisKeysNew(galEls, sk)...)

	return &HeContext{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		Evaluator: hefloat.NewEvaluator(params, evk),
		maxInner:  params.MaxSlots(),
	}, nil
}

// EncryptVector encodes values into the first slots of a fresh ciphertext.
func (he *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	if len(values) > he.Params.MaxSlots() {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "%d values do not fit in %d slots", len(values), he.Params.MaxSlots())
	}
	pt := hefloat.NewPlaintext(he.Params, he.Params.MaxLevel())
	if err := he.Encoder.Encode(values, pt); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	ct, err := he.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt")
	}
	return ct, nil
}

// DecryptVector returns the first n slots of ct.
func (he *HeContext) DecryptVector(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	if n > he.Params.MaxSlots() {
		return nil, errors.Errorf("cannot read %d slots out of %d", n, he.Params.MaxSlots())
	}
	decoded := make([]float64, he.Params.MaxSlots())
	if err := he.Encoder.Decode(he.Decryptor.DecryptNew(ct), decoded); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return decoded[:n], nil
}

// WeightedSums evaluates w·x for an encrypted x laid out in the first slots of ct.
// Each row of w is one output neuron; its sum comes back in slot 0 of a separate
// ciphertext.
func (he *HeContext) WeightedSums(ct *rlwe.Ciphertext, w *mat.Dense) ([]*rlwe.Ciphertext, error) {
	rows, cols := w.Dims()
	width := nextPow2(cols)
	if width > he.maxInner {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "layer with %d inputs exceeds %d slots", cols, he.maxInner)
	}

	sums := make([]*rlwe.Ciphertext, rows)
	for o := 0; o < rows; o++ {
		pt := hefloat.NewPlaintext(he.Params, ct.Level())
		if err := he.Encoder.Encode(mat.Row(nil, o, w), pt); err != nil {
			return nil, errors.Wrapf(err, "encode row %d", o)
		}

		prod, err := he.Evaluator.MulNew(ct, pt)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", o)
		}
		if err := he.Evaluator.Rescale(prod, prod); err != nil {
			return nil, errors.Wrapf(err, "rescale row %d", o)
		}

		for k := 1; k < width; k <<= 1 {
			rot, err := he.Evaluator.RotateNew(prod, k)
			if err != nil {
				return nil, errors.Wrapf(err, "rotate row %d by %d", o, k)
			}
			if err := he.Evaluator.Add(prod, rot, prod); err != nil {
				return nil, errors.Wrapf(err, "add row %d", o)
			}
		}
		sums[o] = prod
	}
	return sums, nil
}

// FirstLayer encrypts input, evaluates the weighted sums of weights[0] under
// encryption and decrypts them.
func (he *HeContext) FirstLayer(input []float64, w *mat.Dense) ([]float64, error) {
	if _, cols := w.Dims(); len(input) != cols {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "input has %d values, layer expects %d", len(input), cols)
	}
	ct, err := he.EncryptVector(input)
	if err != nil {
		return nil, err
	}
	cts, err := he.WeightedSums(ct, w)
	if err != nil {
		return nil, err
	}

	sums := make([]float64, len(cts))
	for o, c := range cts {
		v, err := he.DecryptVector(c, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", o)
		}
		sums[o] = v[0]
	}
	return sums, nil
}

// Convert is nn.Convert with the first layer evaluated under encryption. Its result
// matches the plaintext one up to CKKS precision.
func (he *HeContext) Convert(input []float64, weights nn.Weights, fn nn.ActivationFunc) ([]float64, error) {
	if fn == nil {
		return nil, errors.New("nil activation function")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	sums, err := he.FirstLayer(input, weights[0])
	if err != nil {
		return nil, err
	}
	hidden := make([]float64, len(sums))
	for i, s := range sums {
		hidden[i] = fn(s)
	}
	if len(weights) == 1 {
		return hidden, nil
	}
	return nn.Convert(hidden, weights[1:], fn)
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
