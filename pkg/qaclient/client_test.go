package qaclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/qaclient"
)

const answerStream = "data:\n" +
	"data: {\"content\":\"Binary search \"}\n" +
	"data: {\"content\":\"halves the range.\"}\n" +
	"data: [{\"topicId\":7,\"topicTitle\":\"Binary search\"}]\n"

var _ = Describe("Client", func() {
	var (
		upstream *httptest.Server
		handler  http.HandlerFunc
		client   *qaclient.Client
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, answerStream)
		}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(upstream.Close)

		var err error
		client, err = qaclient.New(qaclient.Config{
			BaseURL: upstream.URL + "/api/",
			Token:   "secret",
			Timeout: 5 * time.Second,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("request", func() {
		It("posts the question with streaming headers", func() {
			var (
				gotMethod, gotPath   string
				gotAccept, gotAuth   string
				gotEncoding, gotType string
				gotBody              map[string]any
			)
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotPath = r.Method, r.URL.Path
				gotAccept = r.Header.Get("Accept")
				gotAuth = r.Header.Get("Authorization")
				gotEncoding = r.Header.Get("Accept-Encoding")
				gotType = r.Header.Get("Content-Type")
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
			}

			out := client.Ask(context.Background(), qaclient.Question{Question: "What is binary search?"}, &answer.Collector{})
			Expect(out.Err).NotTo(HaveOccurred())

			Expect(gotMethod).To(Equal(http.MethodPost))
			Expect(gotPath).To(Equal("/api/qa/stream"))
			Expect(gotAccept).To(Equal("text/event-stream"))
			Expect(gotAuth).To(Equal("Bearer secret"))
			Expect(gotEncoding).To(Equal("br, gzip"))
			Expect(gotType).To(Equal("application/json"))
			Expect(gotBody).To(Equal(map[string]any{
				"question":         "What is binary search?",
				"contextFilters":   []any{},
				"topK":             float64(qaclient.DefaultTopK),
				"useKnowledgeBase": true,
			}))
		})

		It("omits the authorization header without a token", func() {
			var gotAuth string
			handler = func(_ http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
			}
			anon, err := qaclient.New(qaclient.Config{BaseURL: upstream.URL})
			Expect(err).NotTo(HaveOccurred())

			out := anon.Ask(context.Background(), qaclient.Question{Question: "q"}, &answer.Collector{})
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(gotAuth).To(BeEmpty())
		})
	})

	Describe("response", func() {
		It("decodes a plain stream", func() {
			c := &answer.Collector{}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, c)
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(c.Text()).To(Equal("Binary search halves the range."))
			Expect(c.References()).To(HaveLen(1))
			Expect(c.References()[0].TopicID).To(Equal("7"))
		})

		It("delivers chunks while the stream is still open", func() {
			release := make(chan struct{})
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "data: {\"content\":\"early\"}\n")
				w.(http.Flusher).Flush()
				<-release
				_, _ = io.WriteString(w, "data: late\n")
			}

			c := &answer.Collector{}
			done := make(chan decoder.Outcome, 1)
			go func() {
				done <- client.Ask(context.Background(), qaclient.Question{Question: "q"}, c)
			}()

			Eventually(c.Text).Should(Equal("early"))
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			close(release)

			var out decoder.Outcome
			Eventually(done).Should(Receive(&out))
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(c.Text()).To(Equal("earlylate"))
		})

		It("decodes gzip bodies", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", "gzip")
				zw := gzip.NewWriter(w)
				_, _ = io.WriteString(zw, answerStream)
				_ = zw.Close()
			}
			c := &answer.Collector{}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, c)
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(c.Text()).To(Equal("Binary search halves the range."))
		})

		It("decodes brotli bodies", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", "br")
				bw := brotli.NewWriter(w)
				_, _ = io.WriteString(bw, answerStream)
				_ = bw.Close()
			}
			c := &answer.Collector{}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, c)
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(c.Text()).To(Equal("Binary search halves the range."))
		})

		It("copies the raw stream to a capture writer", func() {
			var capture bytes.Buffer
			out := decoder.Run(context.Background(),
				client.Opener(qaclient.Question{Question: "q"}, &capture),
				&answer.Collector{})
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(capture.String()).To(Equal(answerStream))
		})
	})

	Describe("connection failures", func() {
		It("reports a non-success status with the backend message", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"code":400,"message":"question too long"}`)
			}
			c := &answer.Collector{}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, c)

			var connErr *decoder.ConnectionError
			Expect(errors.As(out.Err, &connErr)).To(BeTrue())
			Expect(connErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(connErr.Body).To(Equal("question too long"))

			calls := c.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Kind).To(Equal(answer.CallError))
		})

		It("bounds plain-text error bodies", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, strings.Repeat("x", 1000))
			}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, &answer.Collector{})

			var connErr *decoder.ConnectionError
			Expect(errors.As(out.Err, &connErr)).To(BeTrue())
			Expect(connErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(len([]rune(connErr.Body))).To(BeNumerically("<=", 201))
		})

		It("reports an unreachable backend", func() {
			upstream.Close()
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, &answer.Collector{})

			var connErr *decoder.ConnectionError
			Expect(errors.As(out.Err, &connErr)).To(BeTrue())
			Expect(connErr.StatusCode).To(BeZero())
		})

		It("rejects an unsupported content encoding", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", "zstd")
				_, _ = io.WriteString(w, "garbage")
			}
			out := client.Ask(context.Background(), qaclient.Question{Question: "q"}, &answer.Collector{})
			Expect(out.Err).To(MatchError(ContainSubstring(`unsupported content encoding "zstd"`)))
		})

		It("fails blank questions before sending anything", func() {
			called := false
			handler = func(http.ResponseWriter, *http.Request) { called = true }

			out := client.Ask(context.Background(), qaclient.Question{Question: "  "}, &answer.Collector{})
			Expect(out.Err).To(MatchError(qaclient.ErrBlankQuestion))
			Expect(called).To(BeFalse())
		})
	})
})

var _ = Describe("New", func() {
	DescribeTable("rejects bad base URLs",
		func(base string) {
			_, err := qaclient.New(qaclient.Config{BaseURL: base})
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("no scheme", "localhost:8080/api"),
		Entry("unsupported scheme", "ftp://example.com"),
	)
})

var _ = Describe("Question", func() {
	It("accepts a question at the length limit", func() {
		q := qaclient.Question{Question: strings.Repeat("排", qaclient.MaxQuestionLength)}
		Expect(q.Validate()).To(Succeed())
	})

	It("rejects a question over the length limit", func() {
		q := qaclient.Question{Question: strings.Repeat("a", qaclient.MaxQuestionLength+1)}
		Expect(q.Validate()).To(MatchError(ContainSubstring("limit is 500")))
	})

	It("rejects a negative topK", func() {
		Expect(qaclient.Question{Question: "q", TopK: -1}.Validate()).To(HaveOccurred())
	})
})
