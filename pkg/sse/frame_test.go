package sse_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/algoqa/pkg/sse"
)

var _ = Describe("Classify", func() {
	DescribeTable("payload extraction",
		func(line, payload string) {
			f, ok := sse.Classify(line)
			Expect(ok).To(BeTrue())
			Expect(f.Payload).To(Equal(payload))
		},
		Entry("no separator", "data:plain text", "plain text"),
		Entry("single separator", "data: plain text", "plain text"),
		Entry("only the first space is stripped", "data:   indented", "  indented"),
		Entry("trailing whitespace is kept", "data: tail  ", "tail  "),
		Entry("json payload", `data: {"content":"hi"}`, `{"content":"hi"}`),
		Entry("carriage return is part of the payload", "data: x\r", "x\r"),
	)

	DescribeTable("keep-alive frames",
		func(line string, keepAlive bool) {
			f, ok := sse.Classify(line)
			Expect(ok).To(BeTrue())
			Expect(f.KeepAlive()).To(Equal(keepAlive))
		},
		Entry("empty payload", "data:", true),
		Entry("separator only", "data: ", true),
		Entry("whitespace beyond the separator", "data:  ", false),
	)

	DescribeTable("non-event lines",
		func(line string) {
			_, ok := sse.Classify(line)
			Expect(ok).To(BeFalse())
		},
		Entry("blank line", ""),
		Entry("comment", ": ping"),
		Entry("event field", "event: message"),
		Entry("id field", "id: 7"),
		Entry("marker not at start", " data: x"),
		Entry("upper case marker", "DATA: x"),
	)
})
