package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/config"
	"github.com/crestfund/lead-crm/internal/model"
)

// ErrConversationNotFound is returned when a submission names an unknown lead.
var ErrConversationNotFound = eris.New("submission: conversation not found")

// ErrNoQualifiedLenders is returned when there is nothing to submit to.
var ErrNoQualifiedLenders = eris.New("submission: no qualified lender matches")

// Store is the slice of persistence packet building needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error)
	ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error)
}

// Uploader delivers a finished packet to the drop site.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) error
}

// Receipt describes a delivered packet.
type Receipt struct {
	Filename string `json:"filename"`
	Bytes    int    `json:"bytes"`
	Lenders  int    `json:"lenders"`
}

// Service builds lender submission packets and delivers them over FTP.
type Service struct {
	store    Store
	uploader Uploader
}

func NewService(st Store, uploader Uploader) *Service {
	return &Service{store: st, uploader: uploader}
}

// Submit builds the packet for a conversation and uploads it. The packet
// only includes qualified matches; with none the call is rejected.
func (s *Service) Submit(ctx context.Context, conversationID string) (*Receipt, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	matches, err := s.store.ListLenderMatches(ctx, conversationID, true)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoQualifiedLenders
	}

	analysis, err := s.store.GetFCS(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	wb, err := BuildWorkbook(conv, analysis, matches)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "submission: serialize workbook")
	}

	filename := fmt.Sprintf("submission_%d_%s.xlsx", conv.SequenceNum, time.Now().UTC().Format("20060102_150405"))
	if err := s.uploader.Upload(ctx, filename, bytes.NewReader(buf.Bytes())); err != nil {
		return nil, err
	}

	zap.L().Info("submission packet delivered",
		zap.String("conversation_id", conversationID),
		zap.String("filename", filename),
		zap.Int("bytes", buf.Len()),
		zap.Int("lenders", len(matches)))
	return &Receipt{Filename: filename, Bytes: buf.Len(), Lenders: len(matches)}, nil
}

// FTPUploader stores packets on a lender drop site. Each upload dials a
// fresh connection; drop servers tend to kill idle control channels.
type FTPUploader struct {
	host    string
	user    string
	pass    string
	dir     string
	timeout time.Duration
}

func NewFTPUploader(cfg config.SubmissionConfig) *FTPUploader {
	host := cfg.FTPHost
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	return &FTPUploader{
		host:    host,
		user:    cfg.FTPUser,
		pass:    cfg.FTPPassword,
		dir:     cfg.FTPDir,
		timeout: 30 * time.Second,
	}
}

func (u *FTPUploader) Upload(ctx context.Context, filename string, r io.Reader) error {
	conn, err := ftp.Dial(u.host, ftp.DialWithTimeout(u.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "submission: ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(u.user, u.pass); err != nil {
		return eris.Wrap(err, "submission: ftp login")
	}
	if u.dir != "" {
		if err := conn.ChangeDir(u.dir); err != nil {
			return eris.Wrap(err, "submission: ftp change dir")
		}
	}
	if err := conn.Stor(filename, r); err != nil {
		return eris.Wrap(err, "submission: ftp store")
	}
	return nil
}
