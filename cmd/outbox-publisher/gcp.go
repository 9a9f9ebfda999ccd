package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// cachedPublishers hands out one ordered Pub/Sub publisher per topic and
// stops them all on Close.
type cachedPublishers struct {
	source topicSource
	mu     sync.Mutex
	byName map[string]*gcppubsub.Publisher
}

func newCachedPublishers(source topicSource) *cachedPublishers {
	return &cachedPublishers{source: source, byName: map[string]*gcppubsub.Publisher{}}
}

func (c *cachedPublishers) For(topic string) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byName[topic]; ok {
		return &gcpPublisher{p}
	}
	p := c.source.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	c.byName[topic] = p
	return &gcpPublisher{p}
}

func (c *cachedPublishers) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, p := range c.byName {
		p.Stop()
		delete(c.byName, name)
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if g == nil || g.p == nil {
		return nil
	}
	return gcpResult{r: g.p.Publish(ctx, msg), p: g.p, key: msg.OrderingKey}
}

// gcpResult resumes the ordering key after a failure; Pub/Sub pauses a key
// until told otherwise.
type gcpResult struct {
	r   *gcppubsub.PublishResult
	p   *gcppubsub.Publisher
	key string
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := g.r.Get(ctx)
	if err != nil && g.key != "" {
		g.p.ResumePublish(g.key)
	}
	return id, err
}
