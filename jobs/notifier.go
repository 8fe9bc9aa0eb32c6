package jobs

import (
	"context"
	"fmt"
	"time"
)

// LineNotifier adapts the job queue to the notifier ports the domain
// services define. Messages are Thai because the recipients are the
// branch LINE groups.
type LineNotifier struct {
	client *Client
	target string
}

// NewLineNotifier constructs the adapter for one LINE target.
func NewLineNotifier(client *Client, target string) *LineNotifier {
	return &LineNotifier{client: client, target: target}
}

// NotifyDayClosed announces an order-day close.
func (n *LineNotifier) NotifyDayClosed(ctx context.Context, date time.Time) error {
	_, err := n.client.EnqueueLineNotify(ctx, LineNotifyPayload{
		Target:  n.target,
		Message: fmt.Sprintf("ปิดรับออเดอร์วันที่ %s แล้ว", date.Format("2006-01-02")),
	})
	return err
}

// NotifyGroupCompleted announces that purchasing finished a product group.
func (n *LineNotifier) NotifyGroupCompleted(ctx context.Context, date time.Time, groupID int64, updated int) error {
	_, err := n.client.EnqueueLineNotify(ctx, LineNotifyPayload{
		Target:  n.target,
		Message: fmt.Sprintf("จัดซื้อหมวดสินค้า %d ของวันที่ %s ครบแล้ว (%d ออเดอร์)", groupID, date.Format("2006-01-02"), updated),
	})
	return err
}
