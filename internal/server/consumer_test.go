package server_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrosolutions.dev/agro-pipeline/internal/ingest"
	"agrosolutions.dev/agro-pipeline/internal/server"
	"agrosolutions.dev/agro-pipeline/internal/store"
)

// fakeConsumer satisfies mq.Consumer without a broker.
type fakeConsumer struct {
	deliveries chan amqp.Delivery
	closed     bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{deliveries: make(chan amqp.Delivery)}
}

func (f *fakeConsumer) Consume() (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	close(f.deliveries)
	return nil
}

var _ = Describe("Consumer", func() {
	var (
		logger   *slog.Logger
		pipeline *ingest.Pipeline
		fake     *fakeConsumer
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		fake = newFakeConsumer()

		var err error
		pipeline, err = ingest.NewPipeline(&ingest.PipelineConfig{
			Logger: logger,
			Store:  store.NewMemory(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewConsumer", func() {
		Context("with valid configuration", func() {
			It("should create a consumer", func() {
				consumer, err := server.NewConsumer(&server.ConsumerConfig{
					Logger:   logger,
					Pipeline: pipeline,
					MQClient: fake,
					Queue:    "field-telemetry",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(consumer).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				consumer, err := server.NewConsumer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				consumer, err := server.NewConsumer(&server.ConsumerConfig{
					Pipeline: pipeline,
					MQClient: fake,
					Queue:    "field-telemetry",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when pipeline is nil", func() {
				consumer, err := server.NewConsumer(&server.ConsumerConfig{
					Logger:   logger,
					MQClient: fake,
					Queue:    "field-telemetry",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("pipeline"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when mq client is nil", func() {
				consumer, err := server.NewConsumer(&server.ConsumerConfig{
					Logger:   logger,
					Pipeline: pipeline,
					Queue:    "field-telemetry",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("mq client"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when queue name is empty", func() {
				consumer, err := server.NewConsumer(&server.ConsumerConfig{
					Logger:   logger,
					Pipeline: pipeline,
					MQClient: fake,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("queue"))
				Expect(consumer).To(BeNil())
			})
		})
	})
})
