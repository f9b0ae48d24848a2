package embeddings_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/embeddings"
)

func length(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

var _ = Describe("Normalize", func() {
	It("scales a vector to unit length", func() {
		v := embeddings.Normalize([]float32{3, 4})
		Expect(length(v)).To(BeNumerically("~", 1.0, 1e-6))
		Expect(v[0]).To(BeNumerically("~", 0.6, 1e-6))
		Expect(v[1]).To(BeNumerically("~", 0.8, 1e-6))
	})

	It("leaves unit vectors unchanged", func() {
		v := embeddings.Normalize([]float32{1, 0, 0})
		Expect(v).To(Equal([]float32{1, 0, 0}))
	})

	It("returns zero vectors unchanged", func() {
		v := embeddings.Normalize([]float32{0, 0, 0})
		Expect(v).To(Equal([]float32{0, 0, 0}))
	})

	It("does not mutate the input", func() {
		in := []float32{3, 4}
		embeddings.Normalize(in)
		Expect(in).To(Equal([]float32{3, 4}))
	})
})

var _ = Describe("NormalizeAll", func() {
	It("normalizes every vector", func() {
		out := embeddings.NormalizeAll([][]float32{{3, 4}, {0, 5}})
		Expect(length(out[0])).To(BeNumerically("~", 1.0, 1e-6))
		Expect(length(out[1])).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("skips nil entries", func() {
		out := embeddings.NormalizeAll([][]float32{{3, 4}, nil})
		Expect(out[0]).NotTo(BeNil())
		Expect(out[1]).To(BeNil())
	})
})

var _ = Describe("BatchResult", func() {
	It("reports no error for a clean batch", func() {
		r := embeddings.BatchResult{
			Vectors: [][]float32{{1}, {2}},
			Errs:    make([]error, 2),
		}
		Expect(r.FirstError()).To(Succeed())
	})

	It("returns the first per-item error", func() {
		first := errors.New("first failure")
		r := embeddings.BatchResult{
			Vectors: [][]float32{{1}, nil, nil},
			Errs:    []error{nil, first, errors.New("second failure")},
		}
		Expect(r.FirstError()).To(MatchError(first))
	})

	It("handles an empty result", func() {
		Expect(embeddings.BatchResult{}.FirstError()).To(Succeed())
	})
})
