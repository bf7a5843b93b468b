package expense

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		db     *BoltDB
		dbPath string
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "expenses.db")

		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		db.Close()
	})

	Describe("SaveExpense and GetExpense", func() {
		var expense *Expense

		BeforeEach(func() {
			expense = &Expense{
				ID:           "expense-1",
				MerchantName: "STARBUCKS",
				Date:         time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
				AmountCents:  475,
				Status:       StatusDraft,
				ReceiptPath:  "expense-1_receipt.jpg",
				ContentType:  "image/jpeg",
			}
		})

		It("should round-trip an expense", func() {
			Expect(db.SaveExpense(expense)).To(Succeed())

			loaded, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MerchantName).To(Equal("STARBUCKS"))
			Expect(loaded.AmountCents).To(Equal(475))
			Expect(loaded.Date.Equal(expense.Date)).To(BeTrue())
			Expect(loaded.Status).To(Equal(StatusDraft))
		})

		It("should overwrite on repeated saves", func() {
			Expect(db.SaveExpense(expense)).To(Succeed())

			expense.Status = StatusSubmitted
			Expect(db.SaveExpense(expense)).To(Succeed())

			loaded, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Status).To(Equal(StatusSubmitted))
		})

		It("returns an error for a missing expense", func() {
			_, err := db.GetExpense("missing")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not found"))
		})
	})

	Describe("ListExpenses", func() {
		It("returns an empty list for a fresh database", func() {
			expenses, err := db.ListExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(BeEmpty())
		})

		It("returns every saved expense", func() {
			Expect(db.SaveExpense(&Expense{ID: "a", MerchantName: "Cafe"})).To(Succeed())
			Expect(db.SaveExpense(&Expense{ID: "b", MerchantName: "Grocer"})).To(Succeed())

			expenses, err := db.ListExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(HaveLen(2))
		})
	})

	Describe("DeleteExpense", func() {
		It("should remove the expense", func() {
			Expect(db.SaveExpense(&Expense{ID: "expense-1"})).To(Succeed())
			Expect(db.DeleteExpense("expense-1")).To(Succeed())

			_, err := db.GetExpense("expense-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("persistence across reopens", func() {
		It("should keep saved expenses", func() {
			Expect(db.SaveExpense(&Expense{ID: "expense-1", MerchantName: "Cafe"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MerchantName).To(Equal("Cafe"))
		})
	})
})
