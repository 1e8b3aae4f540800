package tokenmanager

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("TokenManager Tests", func() {
	var server *ghttp.Server
	var tm *TokenManager

	loginResponse := func(token string, ttl time.Duration) map[string]interface{} {
		return map[string]interface{}{
			"token": map[string]interface{}{
				"token":            token,
				"expirationMicros": time.Now().Add(ttl).UnixNano() / 1000,
				"timeout":          int(ttl.Seconds()),
			},
		}
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		tm = NewTokenManager(server.URL(), Credentials{
			Username: "admin",
			Password: "secret",
		}, http.DefaultClient)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("SyncTokenWithoutRetry", func() {
		It("stores the token from a successful login", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.VerifyJSONRepresenting(map[string]interface{}{
					"username":          "admin",
					"password":          "secret",
					"loginProviderName": "tmos",
				}),
				ghttp.RespondWithJSONEncoded(200, loginResponse("abcd.1234", time.Hour)),
			))
			err, exit := tm.SyncTokenWithoutRetry()
			Expect(err).To(BeNil())
			Expect(exit).To(BeFalse())
			Expect(tm.GetToken()).To(Equal("abcd.1234"))
			Expect(tm.Ready()).To(BeTrue())
		})

		It("keeps an explicit login provider", func() {
			tm = NewTokenManager(server.URL(), Credentials{
				Username:          "admin",
				Password:          "secret",
				LoginProviderName: "local",
			}, http.DefaultClient)
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.VerifyJSONRepresenting(map[string]interface{}{
					"username":          "admin",
					"password":          "secret",
					"loginProviderName": "local",
				}),
				ghttp.RespondWithJSONEncoded(200, loginResponse("abcd.1234", time.Hour)),
			))
			err, _ := tm.SyncTokenWithoutRetry()
			Expect(err).To(BeNil())
		})

		It("flags a 401 as a permanent failure", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.RespondWith(401, `{"message":"bad credentials"}`),
			))
			err, exit := tm.SyncTokenWithoutRetry()
			Expect(err).To(MatchError(ContainSubstring("unauthorized")))
			Expect(exit).To(BeTrue())
		})

		It("flags a 404 as a permanent failure", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.RespondWith(404, "not found"),
			))
			err, exit := tm.SyncTokenWithoutRetry()
			Expect(err).To(MatchError(ContainSubstring("not found")))
			Expect(exit).To(BeTrue())
		})

		It("flags a 500 as retryable", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.RespondWith(500, "server error"),
			))
			err, exit := tm.SyncTokenWithoutRetry()
			Expect(err).To(MatchError(ContainSubstring("failed to get token")))
			Expect(exit).To(BeFalse())
		})

		It("flags an unreachable server as a permanent failure", func() {
			server.Close()
			err, exit := tm.SyncTokenWithoutRetry()
			Expect(err).To(MatchError(ContainSubstring("unable to establish connection")))
			Expect(exit).To(BeTrue())
		})
	})

	Describe("Ready", func() {
		It("is false before any login", func() {
			Expect(tm.Ready()).To(BeFalse())
		})

		It("is false once the token has expired", func() {
			tm.SetToken("abcd.1234", time.Now().Add(-time.Minute).UnixNano()/1000)
			Expect(tm.Ready()).To(BeFalse())
		})
	})

	Describe("RefreshToken", func() {
		It("extends the current token through the token endpoint", func() {
			tm.SetToken("abcd.1234", time.Now().Add(time.Hour).UnixNano()/1000)
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("PATCH", BigIQTokenURL+"abcd.1234"),
				ghttp.VerifyHeaderKV("X-F5-Auth-Token", "abcd.1234"),
				ghttp.RespondWithJSONEncoded(200, loginResponse("efgh.5678", time.Hour)),
			))
			Expect(tm.RefreshToken()).To(Succeed())
			Expect(tm.GetToken()).To(Equal("efgh.5678"))
		})

		It("falls back to a fresh login when the refresh is rejected", func() {
			tm.SetToken("abcd.1234", time.Now().Add(time.Hour).UnixNano()/1000)
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("PATCH", BigIQTokenURL+"abcd.1234"),
					ghttp.RespondWith(401, "expired"),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", BigIQLoginURL),
					ghttp.RespondWithJSONEncoded(200, loginResponse("efgh.5678", time.Hour)),
				),
			)
			Expect(tm.RefreshToken()).To(Succeed())
			Expect(tm.GetToken()).To(Equal("efgh.5678"))
		})

		It("logs in from scratch when no token is held", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", BigIQLoginURL),
				ghttp.RespondWithJSONEncoded(200, loginResponse("abcd.1234", time.Hour)),
			))
			Expect(tm.RefreshToken()).To(Succeed())
			Expect(tm.GetToken()).To(Equal("abcd.1234"))
		})
	})
})
