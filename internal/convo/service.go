// Package convo aggregates the request/response tables into the
// conversation list the console renders: one row per agent plus one row
// per group, with pending counts and a preview of the latest activity.
package convo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cuedeck/cuedeck/internal/cue"
	"github.com/cuedeck/cuedeck/internal/store"
)

// previewLimit is the maximum rune length of a conversation preview.
const previewLimit = 50

var ErrBadConversationKey = errors.New("conversation key must be {type}:{id}")

// Conversation is one row of the console sidebar.
type Conversation struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	PendingCount int    `json:"pendingCount"`
	LastMessage  string `json:"lastMessage"`
	LastTime     string `json:"lastTime"`
}

type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

func splitKey(key string) (ctype, id string, err error) {
	ctype, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadConversationKey, key)
	}
	if ctype != store.ConversationAgent && ctype != store.ConversationGroup {
		return "", "", fmt.Errorf("%w: %q", ErrBadConversationKey, key)
	}
	return ctype, id, nil
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "…"
}

// preview renders the latest activity of a conversation as one line.
// Agent turns are prefixed with the speaker, operator turns with "You:".
func preview(a *store.Activity, profiles map[string]string) string {
	if a == nil {
		return ""
	}
	if a.Kind == "request" {
		name := a.AgentID
		if dn, ok := profiles[a.AgentID]; ok && dn != "" {
			name = dn
		}
		return truncate(name + ": " + a.Text)
	}
	p := cue.DecodeResponse(a.Text)
	text := p.Text
	if text == "" {
		if len(p.Images) > 0 {
			text = "[image]"
		} else {
			text = "[message]"
		}
	}
	return truncate("You: " + text)
}

// List returns the conversation rows for a view. view is "active"
// (default), "archived", or "all"; soft-deleted conversations never appear.
func (s *Service) List(view string) ([]Conversation, error) {
	if view == "" {
		view = "active"
	}

	profiles, err := s.store.Profiles()
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Meta()
	if err != nil {
		return nil, err
	}

	visible := func(ctype, id string) bool {
		m, ok := meta[ctype+":"+id]
		if ok && m.Deleted {
			return false
		}
		switch view {
		case "archived":
			return ok && m.Archived
		case "all":
			return true
		default:
			return !ok || !m.Archived
		}
	}

	var out []Conversation

	agentIDs, err := s.store.AgentIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range agentIDs {
		if !visible(store.ConversationAgent, id) {
			continue
		}
		c, err := s.buildRow(store.ConversationAgent, id, id, []string{id}, profiles)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	groups, err := s.store.ListGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if !visible(store.ConversationGroup, g.ID) {
			continue
		}
		members, err := s.store.GroupMembers(g.ID)
		if err != nil {
			return nil, err
		}
		c, err := s.buildRow(store.ConversationGroup, g.ID, g.Name, members, profiles)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	sortConversations(out)
	return out, nil
}

func (s *Service) buildRow(ctype, id, name string, agentIDs []string, profiles map[string]string) (*Conversation, error) {
	c := &Conversation{Type: ctype, ID: id, Name: name, DisplayName: name}
	if ctype == store.ConversationAgent {
		if dn, ok := profiles[id]; ok && dn != "" {
			c.DisplayName = dn
		}
	}

	pending, err := s.store.PendingCount(agentIDs)
	if err != nil {
		return nil, err
	}
	c.PendingCount = pending

	last, err := s.store.LastActivity(agentIDs)
	if err != nil {
		return nil, err
	}
	if last != nil {
		c.LastMessage = preview(last, profiles)
		c.LastTime = last.Time
	}
	return c, nil
}

// sortConversations orders rows for the sidebar: conversations with
// pending work first, then most recent activity, idle ones last.
// Timestamps compare lexicographically; the layout makes that chronological.
func sortConversations(cs []Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		ap, bp := a.PendingCount > 0, b.PendingCount > 0
		if ap != bp {
			return ap
		}
		if a.LastTime != b.LastTime {
			if a.LastTime == "" {
				return false
			}
			if b.LastTime == "" {
				return true
			}
			return a.LastTime > b.LastTime
		}
		return a.DisplayName < b.DisplayName
	})
}

// Archive hides the listed conversations from the active view.
func (s *Service) Archive(keys []string) error {
	return s.setArchived(keys, true)
}

// Unarchive restores the listed conversations to the active view.
func (s *Service) Unarchive(keys []string) error {
	return s.setArchived(keys, false)
}

func (s *Service) setArchived(keys []string, archived bool) error {
	for _, key := range keys {
		ctype, id, err := splitKey(key)
		if err != nil {
			return err
		}
		if err := s.store.SetArchived(ctype, id, archived); err != nil {
			return err
		}
	}
	return nil
}

// Delete soft-deletes the listed conversations. Deleting a group also
// drops the group row so it cannot resurface via the group list.
func (s *Service) Delete(keys []string) error {
	for _, key := range keys {
		ctype, id, err := splitKey(key)
		if err != nil {
			return err
		}
		if err := s.store.SetDeleted(ctype, id); err != nil {
			return err
		}
		if ctype == store.ConversationGroup {
			if err := s.store.DeleteGroup(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateGroup creates a named group with the given members and returns
// its generated id.
func (s *Service) CreateGroup(name string, members []string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("group name required")
	}
	id := uuid.NewString()
	if err := s.store.CreateGroup(id, name); err != nil {
		return "", err
	}
	if len(members) > 0 {
		if err := s.store.SetGroupMembers(id, members); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Service) RenameGroup(id, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("group name required")
	}
	return s.store.RenameGroup(id, name)
}

func (s *Service) SetMembers(id string, members []string) error {
	return s.store.SetGroupMembers(id, members)
}

// SetDisplayName records a friendly name for an agent.
func (s *Service) SetDisplayName(agentID, displayName string) error {
	return s.store.UpsertProfile(agentID, displayName)
}

// Scope resolves a conversation to the agent ids it covers: the agent
// itself, or a group's current members.
func (s *Service) Scope(ctype, id string) ([]string, error) {
	switch ctype {
	case store.ConversationAgent:
		return []string{id}, nil
	case store.ConversationGroup:
		return s.store.GroupMembers(id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadConversationKey, ctype+":"+id)
	}
}
