package decoder_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/decoder"
)

var _ = Describe("FollowSource", func() {
	var (
		path string
		file *os.File
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "answer.sse")
		var err error
		file, err = os.Create(path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(file.Close)

		_, err = file.WriteString("data: {\"content\":\"first \"}\n")
		Expect(err).NotTo(HaveOccurred())
	})

	It("follows appended frames until the capture is renamed", func() {
		src, err := decoder.NewFollowSource(path, 0)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(src.Close)

		c := &answer.Collector{}
		done := make(chan decoder.Outcome, 1)
		go func() {
			done <- decoder.Decode(context.Background(), src, c)
		}()

		Eventually(c.Text).Should(Equal("first "))

		_, err = file.WriteString("data: {\"content\":\"second\"}\ndata: tail")
		Expect(err).NotTo(HaveOccurred())
		Eventually(c.Text).Should(Equal("first second"))
		Consistently(done, 100*time.Millisecond).ShouldNot(Receive())

		Expect(os.Rename(path, path+".done")).To(Succeed())

		var out decoder.Outcome
		Eventually(done, 2*time.Second).Should(Receive(&out))
		Expect(out.Err).NotTo(HaveOccurred())
		Expect(c.Text()).To(Equal("first secondtail"))
		Expect(c.Calls()[len(c.Calls())-1].Kind).To(Equal(answer.CallDone))
	})

	It("stops when the context is cancelled", func() {
		src, err := decoder.NewFollowSource(path, 0)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(src.Close)

		ctx, cancel := context.WithCancel(context.Background())
		c := &answer.Collector{}
		done := make(chan decoder.Outcome, 1)
		go func() {
			done <- decoder.Decode(ctx, src, c)
		}()

		Eventually(c.Text).Should(Equal("first "))
		cancel()

		var out decoder.Outcome
		Eventually(done, 2*time.Second).Should(Receive(&out))
		Expect(out.Err).To(MatchError(context.Canceled))
	})

	It("fails to open a missing capture", func() {
		_, err := decoder.NewFollowSource(filepath.Join(GinkgoT().TempDir(), "missing"), 0)
		Expect(err).To(MatchError(ContainSubstring("opening capture")))
	})
})
