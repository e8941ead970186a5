/*
 *    Copyright 2025 Jeff Galyan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package ginbody_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jrgalyan/reqbody"
	"github.com/jrgalyan/reqbody/ginbody"
)

var _ = Describe("ginbody", func() {
	It("reads the body after gin bound it", func() {
		router := gin.New()
		router.Use(ginbody.Buffering(reqbody.BufferingConfig{}))
		router.POST("/bind", func(c *gin.Context) {
			var doc struct {
				Name string `json:"name"`
			}
			if err := c.ShouldBindJSON(&doc); err != nil {
				c.JSON(http.StatusBadRequest, reqbody.ErrorResponse{Error: err.Error()})
				return
			}
			res, err := ginbody.Read(c, 8)
			if err != nil {
				c.JSON(http.StatusInternalServerError, reqbody.ErrorResponse{Error: err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"name": doc.Name, "raw": res.Text})
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"name":"wombat"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rr, req)

		Expect(rr.Code).To(Equal(http.StatusOK))
		var out map[string]string
		Expect(json.Unmarshal(rr.Body.Bytes(), &out)).To(Succeed())
		Expect(out["name"]).To(Equal("wombat"))
		Expect(out["raw"]).To(Equal(`{"name": [truncated 9 bytes]`))
	})

	It("returns Unavailable without buffering", func() {
		router := gin.New()
		var kind reqbody.Kind
		router.POST("/raw", func(c *gin.Context) {
			res, err := ginbody.Read(c, reqbody.NoLimit)
			Expect(err).NotTo(HaveOccurred())
			kind = res.Kind
			c.Status(http.StatusNoContent)
		})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/raw", strings.NewReader("x")))
		Expect(rr.Code).To(Equal(http.StatusNoContent))
		Expect(kind).To(Equal(reqbody.Unavailable))
	})

	It("logs the status and body of gin handlers", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		router := gin.New()
		router.Use(ginbody.Logger(reqbody.LoggerConfig{Logger: logger, Buffering: &reqbody.BufferingConfig{}}))
		router.POST("/items", func(c *gin.Context) {
			var doc map[string]any
			_ = c.ShouldBindJSON(&doc)
			c.String(http.StatusCreated, "ok")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"a":1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(reqbody.RequestIDHeader, "gin-1")
		router.ServeHTTP(rr, req)

		Expect(rr.Code).To(Equal(http.StatusCreated))
		Expect(rr.Header().Get(reqbody.RequestIDHeader)).To(Equal("gin-1"))

		var line map[string]any
		Expect(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line)).To(Succeed())
		Expect(line["id"]).To(Equal("gin-1"))
		Expect(line["status"]).To(BeNumerically("==", http.StatusCreated))
		Expect(line["body"]).To(Equal(`{"a":1}`))
	})
})
