package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrosolutions.dev/agro-pipeline/internal/ingest"
	"agrosolutions.dev/agro-pipeline/internal/store"
)

func validInput(fieldID string) ingest.ReadingInput {
	return ingest.ReadingInput{
		FieldID:      fieldID,
		SoilMoisture: float64Ptr(40),
	}
}

var _ = Describe("Pipeline", func() {
	var (
		logger *slog.Logger
		mem    *store.Memory
		pipe   *ingest.Pipeline
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		mem = store.NewMemory()

		var err error
		pipe, err = ingest.NewPipeline(&ingest.PipelineConfig{
			Logger: logger,
			Store:  mem,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewPipeline", func() {
		It("should return error when config is nil", func() {
			p, err := ingest.NewPipeline(nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
			Expect(p).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			p, err := ingest.NewPipeline(&ingest.PipelineConfig{Store: mem})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(p).To(BeNil())
		})

		It("should return error when store is nil", func() {
			p, err := ingest.NewPipeline(&ingest.PipelineConfig{Logger: logger})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("store"))
			Expect(p).To(BeNil())
		})
	})

	Describe("IngestSingle", func() {
		It("should persist a valid reading", func() {
			res := pipe.IngestSingle(context.Background(), validInput("field-1"))
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value).NotTo(BeNil())
			Expect(res.Value.FieldID).To(Equal("field-1"))
			Expect(mem.ReadingCount()).To(Equal(1))
		})

		It("should fail validation without persisting", func() {
			res := pipe.IngestSingle(context.Background(), ingest.ReadingInput{})
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyIngestion)).To(BeTrue())
			Expect(mem.ReadingCount()).To(BeZero())
		})

		It("should report a persistence failure with the persistence key", func() {
			mem.SaveReadingErr = errors.New("connection refused")
			res := pipe.IngestSingle(context.Background(), validInput("field-1"))
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyPersistence)).To(BeTrue())
			Expect(res.Messages()[0]).To(ContainSubstring("connection refused"))
		})
	})

	Describe("IngestBatch", func() {
		It("should reject an empty batch", func() {
			res := pipe.IngestBatch(context.Background(), ingest.BatchInput{})
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyBatch)).To(BeTrue())
			Expect(res.Value.Success).To(BeFalse())
			Expect(res.Value.Errors).To(ContainElement("No readings provided in batch"))
		})

		It("should persist all readings of a clean batch", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("field-1"),
				validInput("field-2"),
				validInput("field-3"),
			}}

			res := pipe.IngestBatch(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.ProcessedCount).To(Equal(3))
			Expect(res.Value.FailedCount).To(BeZero())
			Expect(res.Value.Errors).To(BeEmpty())
			Expect(mem.ReadingCount()).To(Equal(3))
		})

		It("should continue past invalid items and persist the rest", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("field-1"),
				{FieldID: "field-2"}, // no telemetry at all
				validInput("field-3"),
			}}

			res := pipe.IngestBatch(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.ProcessedCount).To(Equal(2))
			Expect(res.Value.FailedCount).To(Equal(1))
			Expect(res.Value.Errors).To(HaveLen(1))
			Expect(res.Value.Errors[0]).To(HavePrefix("Field field-2:"))
			Expect(mem.ReadingCount()).To(Equal(2))
		})

		It("should account for every input item", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("a"),
				{},
				validInput("b"),
				{FieldID: "c", SensorType: "temp"}, // missing unit
				validInput("d"),
			}}

			res := pipe.IngestBatch(context.Background(), batch)
			Expect(res.Value.ProcessedCount + res.Value.FailedCount).To(Equal(5))
			Expect(len(res.Value.Errors)).To(Equal(res.Value.FailedCount))
		})

		It("should fail the whole call when the batch write fails", func() {
			mem.SaveReadingsErr = errors.New("disk full")
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("field-1"),
				validInput("field-2"),
			}}

			res := pipe.IngestBatch(context.Background(), batch)
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyPersistence)).To(BeTrue())
			Expect(res.Value.Success).To(BeFalse())
			// Per-item counts survive the failed write.
			Expect(res.Value.ProcessedCount).To(Equal(2))
			Expect(res.Value.Errors).To(ContainElement("Batch save failed: disk full"))
			Expect(mem.ReadingCount()).To(BeZero())
		})

		It("should not write anything when all items are invalid", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				{}, {FieldID: "x"},
			}}

			res := pipe.IngestBatch(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.ProcessedCount).To(BeZero())
			Expect(res.Value.FailedCount).To(Equal(2))
			Expect(mem.ReadingCount()).To(BeZero())
		})

		Context("when the context is cancelled", func() {
			It("should fail the call and count every skipped item", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
					validInput("field-1"),
					validInput("field-2"),
					validInput("field-3"),
					validInput("field-4"),
				}}

				res := pipe.IngestBatch(ctx, batch)
				Expect(res.Succeeded).To(BeFalse())
				Expect(res.HasKey(ingest.KeyCancelled)).To(BeTrue())
				Expect(res.Value.ProcessedCount).To(BeZero())
				Expect(res.Value.FailedCount).To(Equal(4))
				Expect(res.Value.Errors).To(ContainElement(ContainSubstring("Batch cancelled")))
				Expect(mem.ReadingCount()).To(BeZero())
			})

			It("should still persist items built before cancellation", func() {
				// The clock is read once at batch start and once per built
				// item, so cancelling on the second read stops the loop
				// right after the first item.
				calls := 0
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				cancelling, err := ingest.NewPipeline(&ingest.PipelineConfig{
					Logger: logger,
					Store:  mem,
					Now: func() time.Time {
						calls++
						if calls == 2 {
							cancel()
						}
						return time.Now().UTC()
					},
				})
				Expect(err).NotTo(HaveOccurred())

				batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
					validInput("field-1"),
					validInput("field-2"),
					validInput("field-3"),
					validInput("field-4"),
				}}

				res := cancelling.IngestBatch(ctx, batch)
				Expect(res.Succeeded).To(BeFalse())
				Expect(res.HasKey(ingest.KeyCancelled)).To(BeTrue())
				Expect(res.Value.ProcessedCount).To(Equal(1))
				Expect(res.Value.FailedCount).To(Equal(3))
				Expect(res.Value.ProcessedCount + res.Value.FailedCount).To(Equal(4))
				Expect(mem.ReadingCount()).To(Equal(1))
			})
		})
	})

	Describe("IngestBatchParallel", func() {
		It("should reject an empty batch", func() {
			res := pipe.IngestBatchParallel(context.Background(), ingest.BatchInput{})
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyBatch)).To(BeTrue())
		})

		It("should produce the same counts as the sequential path", func() {
			readings := make([]ingest.ReadingInput, 0, 100)
			for i := range 100 {
				if i%5 == 0 {
					readings = append(readings, ingest.ReadingInput{FieldID: "bad"})
					continue
				}
				readings = append(readings, validInput("field-par"))
			}
			batch := ingest.BatchInput{Readings: readings}

			res := pipe.IngestBatchParallel(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.ProcessedCount).To(Equal(80))
			Expect(res.Value.FailedCount).To(Equal(20))
			Expect(res.Value.Errors).To(HaveLen(20))
			Expect(mem.ReadingCount()).To(Equal(80))
		})

		It("should collect an error per failed item", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("ok"),
				{FieldID: "nope"},
				{FieldID: "also-nope", SensorType: "temp"},
			}}

			res := pipe.IngestBatchParallel(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.FailedCount).To(Equal(2))
			Expect(res.Value.Errors).To(ConsistOf(
				ContainSubstring("Field nope:"),
				ContainSubstring("Field also-nope:"),
			))
		})

		It("should fail the whole call when the batch write fails", func() {
			mem.SaveReadingsErr = errors.New("disk full")
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{
				validInput("field-1"),
				validInput("field-2"),
				validInput("field-3"),
			}}

			res := pipe.IngestBatchParallel(context.Background(), batch)
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.HasKey(ingest.KeyPersistence)).To(BeTrue())
			Expect(res.Value.Errors).To(ContainElement("Batch save failed: disk full"))
			Expect(mem.ReadingCount()).To(BeZero())
		})

		It("should handle a batch of one", func() {
			batch := ingest.BatchInput{Readings: []ingest.ReadingInput{validInput("solo")}}
			res := pipe.IngestBatchParallel(context.Background(), batch)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.ProcessedCount).To(Equal(1))
			Expect(mem.ReadingCount()).To(Equal(1))
		})

		Context("when the context is cancelled", func() {
			It("should fail the call and count every skipped item", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				readings := make([]ingest.ReadingInput, 0, 10)
				for range 10 {
					readings = append(readings, validInput("field-par"))
				}

				res := pipe.IngestBatchParallel(ctx, ingest.BatchInput{Readings: readings})
				Expect(res.Succeeded).To(BeFalse())
				Expect(res.HasKey(ingest.KeyCancelled)).To(BeTrue())
				Expect(res.Value.ProcessedCount).To(BeZero())
				Expect(res.Value.FailedCount).To(Equal(10))
				Expect(res.Value.Errors).To(ContainElement(ContainSubstring("Batch cancelled")))
				Expect(mem.ReadingCount()).To(BeZero())
			})
		})
	})
})
