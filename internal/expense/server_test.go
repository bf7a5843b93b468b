package expense

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/wph/expense-manager/internal/capture"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *fakeExtractor
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = &fakeExtractor{}
		service = NewService(db, extractor, storage)
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleCaptureExpense", func() {
		var (
			body        *bytes.Buffer
			contentType string
		)

		BeforeEach(func() {
			amount := 4.75
			extractor.result = capture.ExtractionResult{
				Image: capture.NormalizedImage{Data: []byte("normalized jpeg")},
				Recognition: capture.RecognitionResult{
					Success:    true,
					Text:       "STARBUCKS\nTotal $4.75",
					Confidence: 91.5,
				},
				Fields: capture.ParsedFields{
					Amount:       &amount,
					MerchantName: "STARBUCKS",
				},
			}

			body = &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", "IMG_1234.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("raw photo bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())
			contentType = writer.FormDataContentType()
		})

		It("should return status Created with the draft expense", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/expenses", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var expense Expense
			Expect(json.NewDecoder(resp.Body).Decode(&expense)).To(Succeed())
			Expect(expense.MerchantName).To(Equal("STARBUCKS"))
			Expect(expense.AmountCents).To(Equal(475))
			Expect(expense.Status).To(Equal(StatusDraft))
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				empty := &bytes.Buffer{}
				writer := multipart.NewWriter(empty)
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/expenses", writer.FormDataContentType(), empty)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("database locked")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/expenses", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListExpenses", func() {
		When("expenses exist", func() {
			BeforeEach(func() {
				db.expenses["id1"] = &Expense{ID: "id1", MerchantName: "Cafe"}
				db.expenses["id2"] = &Expense{ID: "id2", MerchantName: "Grocer"}
			})

			It("should return all expenses as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var expenses []*Expense
				Expect(json.NewDecoder(resp.Body).Decode(&expenses)).To(Succeed())
				Expect(expenses).To(HaveLen(2))
			})
		})

		When("no expenses exist", func() {
			It("should return an empty JSON array, not null", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON("[]"))
			})
		})
	})

	Describe("handleGetExpense", func() {
		BeforeEach(func() {
			db.expenses["id1"] = &Expense{ID: "id1", MerchantName: "Cafe"}
		})

		It("should return the expense", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expenses/id1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var expense Expense
			Expect(json.NewDecoder(resp.Body).Decode(&expense)).To(Succeed())
			Expect(expense.MerchantName).To(Equal("Cafe"))
		})

		It("should return status Not Found for a missing expense", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expenses/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("handleUpdateExpense", func() {
		BeforeEach(func() {
			db.expenses["id1"] = &Expense{ID: "id1", MerchantName: "Cafe", AmountCents: 475}
		})

		It("should apply the edits", func() {
			payload := bytes.NewBufferString(`{"merchant_name":"Cafe Roma","amount":500}`)
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/expenses/id1", payload)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var expense Expense
			Expect(json.NewDecoder(resp.Body).Decode(&expense)).To(Succeed())
			Expect(expense.MerchantName).To(Equal("Cafe Roma"))
			Expect(expense.AmountCents).To(Equal(500))
		})

		It("should return status Bad Request for a malformed body", func() {
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/expenses/id1", bytes.NewBufferString("{"))
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleSubmitExpense", func() {
		BeforeEach(func() {
			db.expenses["id1"] = &Expense{ID: "id1", Status: StatusDraft}
		})

		It("should submit the draft", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/expenses/id1/submit", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var expense Expense
			Expect(json.NewDecoder(resp.Body).Decode(&expense)).To(Succeed())
			Expect(expense.Status).To(Equal(StatusSubmitted))
		})

		It("should return status Bad Request when already submitted", func() {
			db.expenses["id1"].Status = StatusSubmitted

			resp, err := http.Post(ghttpServer.URL()+"/api/expenses/id1/submit", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleGetReceiptFile", func() {
		BeforeEach(func() {
			db.expenses["id1"] = &Expense{ID: "id1", ReceiptPath: "id1_receipt.jpg", ContentType: "image/jpeg"}
			storage.files["id1_receipt.jpg"] = []byte("stored jpeg")
		})

		It("should return the file with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expenses/id1/receipt")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("stored jpeg")))
		})
	})

	Describe("handleDeleteExpense", func() {
		BeforeEach(func() {
			db.expenses["id1"] = &Expense{ID: "id1", ReceiptPath: "id1_receipt.jpg"}
			storage.files["id1_receipt.jpg"] = []byte("stored")
		})

		It("should return status No Content", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/expenses/id1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.expenses).NotTo(HaveKey("id1"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("no credentials are provided", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("valid credentials are provided", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/expenses", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))

				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
