package internal

import (
	"abcpay/config"
	"abcpay/services"
	"context"
	"errors"
	"fmt"
	"github.com/julienschmidt/httprouter"
	"net"
	"net/http"
	"time"
)

const (
	abcScanPay         = "/api/payment/abc/scanpay"
	abcPagePay         = "/api/payment/abc/pagepay"
	alipayQRCode       = "/api/payment/alipay/qrcode"
	alipayPrecreate    = "/api/payment/alipay/precreate"
	alipayWap          = "/api/payment/alipay/wap"
	alipayApp          = "/api/payment/alipay/app"
	alipayPC           = "/api/payment/alipay/pc"
	alipayBarcode      = "/api/payment/alipay/barcode"
	alipayRefund       = "/api/payment/alipay/refund"
	alipayQuery        = "/api/payment/alipay/query/:order_no"
	wechatPay          = "/api/payment/wechat"
	legacyPay          = "/api/payment/legacy"
	orderQuery         = "/api/payment/query/:order_no"
	paymentNotify      = "/api/payment/notify"
	certificatesStatus = "/api/certificates/status"
	health             = "/health"

	maxBodySize = 1 << 20
)

type Server struct {
	conf         *config.Config
	httpServer   *http.Server
	payments     services.Payments
	certificates services.Certificates
	logger       services.LogHandler
}

func NewServer(conf *config.Config) *Server {

	server := Server{
		conf: conf,
	}

	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &server
}

func (s *Server) Register(router *httprouter.Router) {
	router.POST(abcScanPay, s.transaction(newScanPay))
	router.POST(abcPagePay, s.transaction(newPagePay))
	router.POST(alipayQRCode, s.transaction(newQRCodePay))
	router.POST(alipayPrecreate, s.transaction(newPrecreate))
	router.POST(alipayWap, s.transaction(newWapPay))
	router.POST(alipayApp, s.transaction(newAppPay))
	router.POST(alipayPC, s.transaction(newPcPay))
	router.POST(alipayBarcode, s.transaction(newBarcodePay))
	router.POST(alipayRefund, s.transaction(newRefund))
	router.POST(wechatPay, s.transaction(newWalletPay))
	router.POST(legacyPay, s.transaction(newLegacyPayment))
	router.GET(alipayQuery, s.queryOrder)
	router.GET(orderQuery, s.legacyQuery)
	router.POST(paymentNotify, s.paymentNotify)
	router.GET(certificatesStatus, s.certificateStatus)
	router.GET(health, s.health)
}

func (s *Server) SetPaymentsService(payments services.Payments) {
	s.payments = payments
}

func (s *Server) SetCertificates(certificates services.Certificates) {
	s.certificates = certificates
}

func (s *Server) SetLogger(logger services.LogHandler) {
	s.logger = logger
}

func (s *Server) Start() error {
	if s.conf == nil {
		return fmt.Errorf("configuration not loaded")
	}

	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	if s.conf.Listen.TLS {
		s.logger.Info(fmt.Sprintf("starting https TLS on %s", serverAddress))
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Info(fmt.Sprintf("starting http on %s", serverAddress))
		err = s.httpServer.Serve(listener)
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
