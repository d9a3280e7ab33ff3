package imapwatch

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/services/mailparse"
)

// EnqueueParsed runs the shared dedup+enqueue step for a routed message.
// mailboxID and folder record where the message was seen; uid is the IMAP
// UID it carried there. Returns false when the message id was already
// recorded.
func EnqueueParsed(ctx context.Context, seenRepo interfaces.SeenMessageRepository, route *RouteResult, msg *mailparse.ParsedMessage, uid uint32, mailboxID, folder string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapwatch.EnqueueParsed")
	defer span.Finish()
	tracing.TagComponentWatcher(span)
	tracing.TagUser(span, route.UserID)

	seen := &models.SeenMessage{
		MessageID:  msg.MessageID,
		UserID:     route.UserID,
		Source:     route.Source,
		FolderPath: folder,
		SourceUID:  uid,
	}
	if mailboxID != "" {
		seen.MailboxID = &mailboxID
	}
	item := &models.QueueItem{
		UserID:     route.UserID,
		Status:     enum.QueueStatusQueued,
		SourceType: enum.SourceTypeEmail,
		SourceInfo: fmt.Sprintf("imap:%s/%s", mailboxID, folder),
		RawData:    mailparse.ToRawData(msg, uid),
	}

	enqueued, err := seenRepo.CheckDedupAndEnqueue(ctx, seen, item)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return enqueued, nil
}
