package decoder_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing/iotest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/decoder"
)

var _ = Describe("ReaderSource", func() {
	It("yields reads up to the buffer size and then io.EOF", func() {
		src := decoder.NewReaderSource(strings.NewReader("abcdefg"), 3)
		ctx := context.Background()

		var got []string
		for {
			chunk, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			got = append(got, string(chunk))
		}
		Expect(got).To(Equal([]string{"abc", "def", "g"}))
	})

	It("returns data that arrives together with an error before the error", func() {
		boom := errors.New("reset by peer")
		r := io.MultiReader(strings.NewReader("data: x\n"), iotest.ErrReader(boom))
		c := &answer.Collector{}

		out := decoder.Decode(context.Background(), decoder.NewReaderSource(r, 0), c)
		Expect(out.Err).To(MatchError(boom))
		Expect(c.Text()).To(Equal("x"))
	})

	It("fails the session when a read returns data and an error that does not repeat", func() {
		boom := errors.New("connection reset by peer")
		r := &scriptedReader{steps: []readStep{
			{data: "data: x\n", err: boom},
			{err: io.EOF},
		}}
		c := &answer.Collector{}

		out := decoder.Decode(context.Background(), decoder.NewReaderSource(r, 0), c)
		Expect(out.Err).To(MatchError(boom))

		calls := c.Calls()
		Expect(calls).To(HaveLen(2))
		Expect(calls[0]).To(Equal(answer.Call{Kind: answer.CallChunk, Text: "x"}))
		Expect(calls[1].Kind).To(Equal(answer.CallError))
	})

	It("ends cleanly when data arrives together with io.EOF", func() {
		r := &scriptedReader{steps: []readStep{{data: "data: x\n", err: io.EOF}}}
		c := &answer.Collector{}

		out := decoder.Decode(context.Background(), decoder.NewReaderSource(r, 0), c)
		Expect(out.Err).NotTo(HaveOccurred())
		Expect(c.Text()).To(Equal("x"))
		Expect(c.Calls()[len(c.Calls())-1].Kind).To(Equal(answer.CallDone))
	})

	It("unblocks a pending read when the context is cancelled", func() {
		pr, pw := io.Pipe()
		defer pw.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := &answer.Collector{}
		done := make(chan decoder.Outcome, 1)
		go func() {
			done <- decoder.Decode(ctx, decoder.NewReaderSource(pr, 0), c)
		}()

		_, err := pw.Write([]byte("data: {\"content\":\"partial\"}\n"))
		Expect(err).NotTo(HaveOccurred())
		Eventually(c.Text).Should(Equal("partial"))

		cancel()

		var out decoder.Outcome
		Eventually(done, time.Second).Should(Receive(&out))
		var readErr *decoder.TransportReadError
		Expect(errors.As(out.Err, &readErr)).To(BeTrue())
		Expect(out.Err).To(MatchError(context.Canceled))
		Expect(kinds(c.Calls())).To(Equal([]answer.CallKind{answer.CallChunk, answer.CallError}))
	})
})

var _ = Describe("SplitEvery", func() {
	It("cuts data into fixed-size chunks", func() {
		Expect(decoder.SplitEvery([]byte("abcde"), 2)).To(Equal([][]byte{
			[]byte("ab"), []byte("cd"), []byte("e"),
		}))
	})

	It("returns the data whole for non-positive sizes", func() {
		Expect(decoder.SplitEvery([]byte("abc"), 0)).To(Equal([][]byte{[]byte("abc")}))
	})
})

var _ = Describe("ParsePolicy", func() {
	DescribeTable("accepted values",
		func(in string, want decoder.Policy) {
			p, err := decoder.ParsePolicy(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
		},
		Entry("empty", "", decoder.PolicyDrop),
		Entry("drop", "drop", decoder.PolicyDrop),
		Entry("report", "report", decoder.PolicyReport),
		Entry("mixed case", " Report ", decoder.PolicyReport),
	)

	It("rejects unknown values", func() {
		_, err := decoder.ParsePolicy("surface")
		Expect(err).To(MatchError(ContainSubstring("available: drop, report")))
	})
})

var _ = Describe("ReaderSource closing", func() {
	It("closes the reader once the stream ends", func() {
		r := &closeTracker{Reader: strings.NewReader("data: x\n")}
		out := decoder.Decode(context.Background(), decoder.NewReaderSource(r, 0), &answer.Collector{})
		Expect(out.Err).NotTo(HaveOccurred())
		Expect(r.closed).To(Equal(1))
	})
})

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

type readStep struct {
	data string
	err  error
}

// scriptedReader returns each step's data and error from a single Read call,
// then io.EOF forever.
type scriptedReader struct {
	steps []readStep
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return copy(p, step.data), step.err
}
