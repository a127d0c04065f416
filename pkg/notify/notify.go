/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package notify fans the run report out to interested systems once a
// run ends. Delivery is best effort, a notification that cannot be
// sent is logged and never alters the run outcome.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/pubsub/v2"
	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/run"
)

type Notifier struct {
	Targets []string
}

// New creates a notifier for the passed targets. Targets are URLs,
// pubsub://project/topic publishes to a Pub/Sub topic and http(s)
// URLs receive the report as a webhook POST.
func New(targets ...string) *Notifier {
	return &Notifier{Targets: targets}
}

// Send delivers the run report to every target
func (n *Notifier) Send(ctx context.Context, r *run.Run) {
	if len(n.Targets) == 0 {
		return
	}

	var report bytes.Buffer
	if err := r.WriteReport(&report); err != nil {
		logrus.Warnf("rendering run report for notifications: %v", err)
		return
	}

	for _, target := range n.Targets {
		if err := n.send(ctx, target, r, report.Bytes()); err != nil {
			logrus.Warnf("delivering notification to %s: %v", target, err)
			continue
		}
		logrus.Infof("run report delivered to %s", target)
	}
}

func (n *Notifier) send(ctx context.Context, target string, r *run.Run, report []byte) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parsing notification target: %w", err)
	}
	switch u.Scheme {
	case "pubsub":
		return n.sendPubsub(ctx, u, r, report)
	case "http", "https":
		return n.sendWebhook(ctx, target, report)
	}
	return fmt.Errorf("%s is not a notification target URL", target)
}

// sendPubsub publishes the report to a Pub/Sub topic, tagging the
// message with the run outcome so subscribers can filter
func (n *Notifier) sendPubsub(ctx context.Context, u *url.URL, r *run.Run, report []byte) error {
	project := u.Hostname()
	topic := strings.TrimPrefix(u.Path, "/")
	if project == "" || topic == "" {
		return fmt.Errorf("pubsub target needs a project and topic")
	}

	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return fmt.Errorf("creating pubsub client: %w", err)
	}
	defer client.Close()

	publisher := client.Publisher(topic)
	defer publisher.Stop()

	status := "failure"
	if r.IsSuccess {
		status = "success"
	}
	res := publisher.Publish(ctx, &pubsub.Message{
		Data: report,
		Attributes: map[string]string{
			"run":        r.ID,
			"status":     status,
			"event":      string(r.Trigger.Event),
			"repository": r.Trigger.Repository,
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing report to topic %s: %w", topic, err)
	}
	logrus.Debugf("report published as message %s", id)
	return nil
}

// sendWebhook POSTs the report to an HTTP endpoint
func (n *Notifier) sendWebhook(ctx context.Context, target string, report []byte) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, target, bytes.NewReader(report),
	)
	if err != nil {
		return fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("http error %d posting report", res.StatusCode)
	}
	return nil
}
