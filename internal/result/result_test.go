package result_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrosolutions.dev/agro-pipeline/internal/result"
)

var _ = Describe("Result", func() {
	Describe("Success", func() {
		It("should carry the value and report success", func() {
			res := result.Success(42)
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value).To(Equal(42))
			Expect(res.Notifications).To(BeEmpty())
		})

		It("should work with pointer values", func() {
			type summary struct{ Count int }
			res := result.Success(&summary{Count: 3})
			Expect(res.Succeeded).To(BeTrue())
			Expect(res.Value.Count).To(Equal(3))
		})
	})

	Describe("Failure", func() {
		It("should report failure with the given notifications", func() {
			res := result.Failure[int](
				result.Notification{Key: "Validation", Message: "bad input"},
			)
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.Value).To(BeZero())
			Expect(res.Notifications).To(HaveLen(1))
			Expect(res.Notifications[0].Key).To(Equal("Validation"))
		})

		It("should preserve notification order", func() {
			res := result.Failure[string](
				result.Notification{Key: "A", Message: "first"},
				result.Notification{Key: "B", Message: "second"},
			)
			Expect(res.Messages()).To(Equal([]string{"first", "second"}))
		})
	})

	Describe("FailureWith", func() {
		It("should carry a partial value alongside the failure", func() {
			res := result.FailureWith(7,
				result.Notification{Key: "Persistence", Message: "save failed"},
			)
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.Value).To(Equal(7))
			Expect(res.Messages()).To(ContainElement("save failed"))
		})
	})

	Describe("Failuref", func() {
		It("should format the notification message", func() {
			res := result.Failuref[int]("Batch", "Field %s: %v", "f-1", "boom")
			Expect(res.Succeeded).To(BeFalse())
			Expect(res.Notifications).To(HaveLen(1))
			Expect(res.Notifications[0].Message).To(Equal("Field f-1: boom"))
		})
	})

	Describe("HasKey", func() {
		It("should find a present key", func() {
			res := result.Failuref[int]("Persistence", "save failed")
			Expect(res.HasKey("Persistence")).To(BeTrue())
		})

		It("should not find an absent key", func() {
			res := result.Failuref[int]("Persistence", "save failed")
			Expect(res.HasKey("Validation")).To(BeFalse())
		})

		It("should return false for a success", func() {
			res := result.Success("ok")
			Expect(res.HasKey("Persistence")).To(BeFalse())
		})
	})

	Describe("Notification", func() {
		It("should render as key colon message", func() {
			n := result.Notification{Key: "Alert", Message: "something happened"}
			Expect(n.String()).To(Equal("Alert: something happened"))
		})
	})
})
