package bigiqclient

import (
	"bytes"
	"io/ioutil"
	"net/http"

	mockhc "github.com/f5devcentral/mockhttpclient"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

type fixedToken string

func (t fixedToken) GetToken() string { return string(t) }

func mockClient(method string, codes []int, bodies []string) *Client {
	responseMap := make(mockhc.ResponseConfigMap)
	responseMap[method] = &mockhc.ResponseConfig{}
	for i, code := range codes {
		responseMap[method].Responses = append(responseMap[method].Responses, &http.Response{
			StatusCode: code,
			Header:     http.Header{},
			Body:       ioutil.NopCloser(bytes.NewReader([]byte(bodies[i]))),
		})
	}
	client, _ := mockhc.NewMockHTTPClient(responseMap)
	return New("https://bigiq.example.com", fixedToken("abcd.1234"), client)
}

var _ = Describe("BIG-IQ Client Tests", func() {
	Describe("response decoding", func() {
		It("decodes a JSON object body", func() {
			client := mockClient("GET", []int{200}, []string{`{"totalItems":1,"generation":3}`})
			resp, err := client.Get("/mgmt/cm/device/licensing/pool/utility/licenses/")
			Expect(err).To(BeNil())
			Expect(resp.Code).To(Equal(200))
			Expect(resp.Contents["totalItems"]).To(Equal(float64(1)))
		})

		It("keeps a non-JSON body raw", func() {
			client := mockClient("GET", []int{502}, []string{"Bad Gateway"})
			resp, err := client.Get("/mgmt/cm/device/licensing/pool/utility/licenses/")
			Expect(err).To(BeNil())
			Expect(resp.Code).To(Equal(502))
			Expect(resp.Contents).To(BeNil())
			Expect(string(resp.Raw)).To(Equal("Bad Gateway"))
		})

		It("tolerates an empty body", func() {
			client := mockClient("DELETE", []int{200}, []string{""})
			resp, err := client.Delete("/some/member", nil)
			Expect(err).To(BeNil())
			Expect(resp.Code).To(Equal(200))
			Expect(resp.Contents).To(BeNil())
		})

		It("surfaces transport errors", func() {
			client := mockClient("GET", []int{200}, []string{"{}"})
			_, err := client.Post("/some/path", nil)
			Expect(err).To(MatchError(ContainSubstring("REST call error")))
		})
	})

	Describe("request construction", func() {
		var server *ghttp.Server
		var client *Client

		BeforeEach(func() {
			server = ghttp.NewServer()
			client = New(server.URL(), fixedToken("abcd.1234"), http.DefaultClient)
		})

		AfterEach(func() {
			server.Close()
		})

		It("sets the auth token and content type on every request", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/mgmt/shared/echo"),
				ghttp.VerifyHeaderKV("X-F5-Auth-Token", "abcd.1234"),
				ghttp.VerifyHeaderKV("Content-Type", "application/json"),
				ghttp.RespondWith(200, "{}"),
			))
			_, err := client.Get("/mgmt/shared/echo")
			Expect(err).To(BeNil())
		})

		It("marshals the body for POST requests", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/mgmt/shared/echo"),
				ghttp.VerifyJSONRepresenting(map[string]interface{}{"name": "offering"}),
				ghttp.RespondWith(202, "{}"),
			))
			resp, err := client.Post("/mgmt/shared/echo", map[string]string{"name": "offering"})
			Expect(err).To(BeNil())
			Expect(resp.Code).To(Equal(202))
		})

		It("sends no body for a nil DELETE payload", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("DELETE", "/mgmt/shared/echo"),
				ghttp.VerifyBody([]byte{}),
				ghttp.RespondWith(200, ""),
			))
			_, err := client.Delete("/mgmt/shared/echo", nil)
			Expect(err).To(BeNil())
		})
	})
})
