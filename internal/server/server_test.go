package server_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrosolutions.dev/agro-pipeline/internal/server"
)

var _ = Describe("Server", func() {
	var (
		logger *slog.Logger
		config *server.ServerConfig
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		config = &server.ServerConfig{
			Logger:      logger,
			DBHost:      "localhost",
			DBPort:      5432,
			DBUser:      "postgres",
			DBPassword:  "password",
			DBName:      "agro",
			DBSSLMode:   "disable",
			RabbitMQURL: "amqp://localhost:5672",
			QueueName:   "field-telemetry",
		}
	})

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create a server", func() {
				srv, err := server.NewServer(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				srv, err := server.NewServer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(srv).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				config.Logger = nil
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(srv).To(BeNil())
			})

			It("should return error when rabbitmq URL is empty", func() {
				config.RabbitMQURL = ""
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("rabbitmq"))
				Expect(srv).To(BeNil())
			})

			It("should return error when queue name is empty", func() {
				config.QueueName = ""
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("queue"))
				Expect(srv).To(BeNil())
			})

			It("should return error when database host is empty", func() {
				config.DBHost = ""
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("host"))
				Expect(srv).To(BeNil())
			})

			It("should return error when database port is not positive", func() {
				config.DBPort = 0
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("port"))
				Expect(srv).To(BeNil())
			})

			It("should return error when database user is empty", func() {
				config.DBUser = ""
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("user"))
				Expect(srv).To(BeNil())
			})

			It("should return error when database name is empty", func() {
				config.DBName = ""
				srv, err := server.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("name"))
				Expect(srv).To(BeNil())
			})
		})
	})
})
