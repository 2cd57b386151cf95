package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/batch"
)

func (p *Processor) handlePost(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var c domain.CommentOp
	if err := op.Decode(&c); err != nil {
		return err
	}
	if err := p.resolve(ctx, b, c.Author); err != nil {
		return err
	}

	content, err := p.content(ctx, c.Author, c.Permlink)
	if err != nil {
		return err
	}
	followers, err := p.followerCount(ctx, c.Author, op.Timestamp)
	if err != nil {
		return err
	}

	created := op.Timestamp.UTC()
	stats := p.analyzer.Analyze(content.Body)
	segments := p.analyzer.SegmentByLanguage(content.Body)

	b.Posts = append(b.Posts, domain.Post{
		Author:   c.Author,
		Permlink: c.Permlink,
		Created:  created,
		Category: c.ParentPermlink,
	})
	b.Bodies = append(b.Bodies, domain.Body{
		Author:           c.Author,
		Permlink:         c.Permlink,
		Created:          created,
		Day:              created.Format("Mon"),
		AuthorReputation: int(Reputation(string(content.AuthorReputation))),
		Title:            content.Title,
		Body:             content.Body,
		WordCount:        stats.WordCount,
		SentenceCount:    stats.SentenceCount,
		ParagraphCount:   stats.ParagraphCount,
		ImageCount:       stats.ImageCount,
		Followers:        followers,
	})

	codes := make([]string, 0, len(segments))
	for code := range segments {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		s := segments[code]
		b.Languages = append(b.Languages, domain.LanguageSegment{
			Author:         c.Author,
			Permlink:       c.Permlink,
			Created:        created,
			Code:           code,
			Words:          s.Words,
			Sentences:      len(s.Sentences),
			Paragraphs:     s.Paragraphs,
			SpellingErrors: s.Errors,
		})
	}

	for _, tag := range tagsOf(content) {
		b.Tags = append(b.Tags, domain.Tag{
			Author:   c.Author,
			Permlink: c.Permlink,
			Created:  created,
			Tag:      tag,
		})
	}
	return nil
}

// tagsOf reads json_metadata.tags, falling back to the post category when the
// metadata is missing, unparseable or has no tags.
func tagsOf(content *domain.Content) []string {
	var meta struct {
		Tags []any `json:"tags"`
	}
	if err := json.Unmarshal([]byte(content.JSONMetadata), &meta); err != nil {
		return fallbackTags(content.Category)
	}

	var tags []string
	for _, t := range meta.Tags {
		s, ok := t.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(tags, s) {
			continue
		}
		tags = append(tags, s)
	}
	if len(tags) == 0 {
		return fallbackTags(content.Category)
	}
	return tags
}

func fallbackTags(category string) []string {
	if category == "" {
		return nil
	}
	return []string{category}
}

func (p *Processor) handleComment(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var c domain.CommentOp
	if err := op.Decode(&c); err != nil {
		return err
	}
	if err := p.resolve(ctx, b, c.Author); err != nil {
		return err
	}

	content, err := p.content(ctx, c.Author, c.Permlink)
	if err != nil {
		return err
	}

	b.Comments = append(b.Comments, domain.Comment{
		Commenter:           c.Author,
		Permlink:            c.Permlink,
		ParentAuthor:        c.ParentAuthor,
		ParentPermlink:      c.ParentPermlink,
		RootAuthor:          content.RootAuthor,
		RootPermlink:        content.RootPermlink,
		Time:                op.Timestamp.UTC(),
		CommenterReputation: int(Reputation(string(content.AuthorReputation))),
	})
	return nil
}

type beneficiaryExtension struct {
	Beneficiaries []struct {
		Account string `json:"account"`
		Weight  int    `json:"weight"`
	} `json:"beneficiaries"`
}

func (p *Processor) handleBeneficiaries(ctx context.Context, op domain.Operation, b *batch.Batch) error {
	var opts domain.CommentOptionsOp
	if err := op.Decode(&opts); err != nil {
		return err
	}
	if len(opts.Extensions) == 0 {
		return nil
	}

	var ext [2]json.RawMessage
	var body beneficiaryExtension
	if err := json.Unmarshal(opts.Extensions[0], &ext); err != nil {
		return fmt.Errorf("%w: comment_options extension in block %d: %v", domain.ErrMalformedPayload, op.BlockNum, err)
	}
	if err := json.Unmarshal(ext[1], &body); err != nil {
		return fmt.Errorf("%w: beneficiaries in block %d: %v", domain.ErrMalformedPayload, op.BlockNum, err)
	}

	for _, ben := range body.Beneficiaries {
		if err := p.resolve(ctx, b, ben.Account); err != nil {
			return err
		}
	}
	for _, ben := range body.Beneficiaries {
		b.Beneficiaries = append(b.Beneficiaries, domain.Beneficiary{
			Author:      opts.Author,
			Permlink:    opts.Permlink,
			Beneficiary: ben.Account,
			Percent:     ben.Weight / 100,
		})
	}
	return nil
}
