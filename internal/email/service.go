package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/stockroom/internal/domain/product"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendLowStockAlert mails the list of products that dropped to the low-stock
// threshold.
func (s *Service) SendLowStockAlert(to string, items []product.Product) error {
	subject := fmt.Sprintf("[Stockroom] %d product(s) low on stock", len(items))
	if len(items) == 1 {
		subject = fmt.Sprintf("[Stockroom] %s is low on stock", items[0].Name)
	}
	return s.deliver(to, subject, BuildLowStockAlertBody(items))
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
