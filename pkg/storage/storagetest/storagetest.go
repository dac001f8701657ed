// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs that driver packages run against their own
// implementation.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Fixture returns a completed transcript started offset minutes after a fixed
// base time.
func Fixture(question string, offset int) *transcript.Transcript {
	started := base.Add(time.Duration(offset) * time.Minute)
	return &transcript.Transcript{
		ID:       uuid.NewString(),
		Question: question,
		Answer:   "answer to " + question,
		References: []answer.Reference{
			{TopicID: fmt.Sprint(offset), TopicTitle: "topic " + question},
		},
		Status:      transcript.StatusCompleted,
		Latency:     1500 * time.Millisecond,
		StartedAt:   started,
		CompletedAt: started.Add(1500 * time.Millisecond),
	}
}

// DriverSpecs registers the shared driver specs. newDriver is called before
// each spec and the driver is closed after it.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(driver.Close)
	})

	Describe("Put and Get", func() {
		It("round trips a transcript", func() {
			t := Fixture("what is a trie", 0)
			Expect(driver.Put(ctx, t)).To(Succeed())

			got, err := driver.Get(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(t.ID))
			Expect(got.Question).To(Equal(t.Question))
			Expect(got.Answer).To(Equal(t.Answer))
			Expect(got.Status).To(Equal(transcript.StatusCompleted))
			Expect(got.Latency).To(Equal(t.Latency))
			Expect(got.StartedAt).To(BeTemporally("==", t.StartedAt))
			Expect(got.CompletedAt).To(BeTemporally("==", t.CompletedAt))
			Expect(got.References).To(HaveLen(1))
			Expect(got.References[0].TopicID).To(Equal("0"))
			Expect(got.References[0].TopicTitle).To(Equal("topic what is a trie"))
		})

		It("keeps failure details", func() {
			t := Fixture("q", 0)
			t.Status = transcript.StatusFailed
			t.Error = "reading stream: connection reset"
			t.Answer = "partial\n[error: reading stream: connection reset]"
			Expect(driver.Put(ctx, t)).To(Succeed())

			got, err := driver.Get(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(transcript.StatusFailed))
			Expect(got.Error).To(Equal(t.Error))
			Expect(got.Answer).To(Equal(t.Answer))
		})

		It("stores transcripts without references or completion time", func() {
			t := Fixture("q", 0)
			t.References = nil
			t.CompletedAt = time.Time{}
			t.Status = transcript.StatusStreaming
			Expect(driver.Put(ctx, t)).To(Succeed())

			got, err := driver.Get(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.References).To(BeEmpty())
			Expect(got.CompletedAt.IsZero()).To(BeTrue())
		})

		It("replaces a transcript with the same ID", func() {
			t := Fixture("q", 0)
			Expect(driver.Put(ctx, t)).To(Succeed())

			t.Answer = "revised"
			Expect(driver.Put(ctx, t)).To(Succeed())

			got, err := driver.Get(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Answer).To(Equal("revised"))

			all, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("rejects nil", func() {
			Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilTranscript))
		})

		It("returns NotFoundError for unknown IDs", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err).To(MatchError("transcript not found: missing"))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i, q := range []string{"first", "second", "third"} {
				Expect(driver.Put(ctx, Fixture(q, i))).To(Succeed())
			}
			failed := Fixture("fourth", 3)
			failed.Status = transcript.StatusFailed
			Expect(driver.Put(ctx, failed)).To(Succeed())
		})

		It("returns newest first", func() {
			all, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(all)).To(Equal([]string{"fourth", "third", "second", "first"}))
		})

		It("honours the limit", func() {
			some, err := driver.List(ctx, storage.ListOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(some)).To(Equal([]string{"fourth", "third"}))
		})

		It("filters by status", func() {
			failed, err := driver.List(ctx, storage.ListOptions{Status: transcript.StatusFailed})
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(failed)).To(Equal([]string{"fourth"}))
		})
	})
}

func questions(ts []*transcript.Transcript) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Question
	}
	return out
}
