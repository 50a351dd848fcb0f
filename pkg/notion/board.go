package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/model"
)

// conversationIDProp is the rich-text property that keys board pages back to
// CRM conversations. It must exist on the target database.
const conversationIDProp = "Conversation ID"

// BoardSyncer mirrors pipeline conversations into a Notion database so the
// team can review the board without CRM access. The mirror is one-way; edits
// made in Notion are overwritten on the next sync.
type BoardSyncer struct {
	client Client
	dbID   string
}

func NewBoardSyncer(client Client, dbID string) *BoardSyncer {
	return &BoardSyncer{client: client, dbID: dbID}
}

// SyncResult counts what a board sync did.
type SyncResult struct {
	Created int
	Updated int
	Failed  int
}

// Sync upserts one page per conversation, keyed by the conversation id
// property. Per-page failures are counted and logged, not fatal.
func (b *BoardSyncer) Sync(ctx context.Context, convs []model.Conversation) (*SyncResult, error) {
	pages, err := QueryAll(ctx, b.client, b.dbID, nil)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := pageConversationID(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	res := &SyncResult{}
	for _, conv := range convs {
		props := boardProperties(conv)

		if pageID, ok := existing[conv.ID]; ok {
			_, err := b.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
			if err != nil {
				res.Failed++
				zap.L().Warn("notion: board page update failed",
					zap.String("conversation_id", conv.ID),
					zap.Error(err))
				continue
			}
			res.Updated++
			continue
		}

		_, err := b.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent:     notionapi.Parent{Type: notionapi.ParentTypeDatabaseID, DatabaseID: notionapi.DatabaseID(b.dbID)},
			Properties: props,
		})
		if err != nil {
			res.Failed++
			zap.L().Warn("notion: board page create failed",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			continue
		}
		res.Created++
	}

	zap.L().Info("notion board sync finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed))
	return res, nil
}

func boardProperties(conv model.Conversation) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: conv.BusinessName}},
			},
		},
		conversationIDProp: notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: conv.ID}},
			},
		},
		"State": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(conv.State)},
		},
		"Priority": notionapi.NumberProperty{
			Number: float64(conv.Priority),
		},
	}
	if conv.Phone != "" {
		props["Phone"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: conv.Phone}},
			},
		}
	}
	if !conv.LastActivity.IsZero() {
		d := notionapi.Date(conv.LastActivity)
		props["Last Activity"] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
	}
	return props
}

func pageConversationID(page notionapi.Page) string {
	prop, ok := page.Properties[conversationIDProp]
	if !ok {
		return ""
	}
	rtp, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rtp.RichText) == 0 {
		return ""
	}
	return rtp.RichText[0].PlainText
}

// QueryAll fetches every page of a database query, prefetching page N+1
// while page N is being consumed.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, req)
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}

		nextReq := &notionapi.DatabaseQueryRequest{StartCursor: resp.NextCursor}
		if filter != nil {
			nextReq.Filter = filter.Filter
			nextReq.Sorts = filter.Sorts
			nextReq.PageSize = filter.PageSize
		}

		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}
