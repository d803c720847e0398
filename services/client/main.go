package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chatclient/internal/config"
	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
	"github.com/chatclient/internal/session"
)

func main() {
	logger.SetPrefix("client")
	userID := flag.String("user-id", os.Getenv("CHAT_USER_ID"), "authenticated user id")
	username := flag.String("username", os.Getenv("CHAT_USERNAME"), "authenticated username")
	chat := flag.String("chat", "", "conversation to open: user:<id>:<username> or group:<id>")
	flag.Parse()

	if *userID == "" || *username == "" {
		logger.Error("user-id and username are required (flags or CHAT_USER_ID/CHAT_USERNAME)")
		os.Exit(1)
	}

	logger.Info("starting chat client")
	cfg := config.Load()

	sess := session.New(cfg, model.User{
		ID:       model.FlexID(*userID),
		Username: *username,
	}, session.Hooks{
		Notify: func(kind, title, message string) {
			logger.Infof("notify [%s] %s: %s", kind, title, message)
		},
		OnStatusChange: func(userID model.FlexID, status string) {
			logger.Infof("status user=%s status=%s", userID, status)
		},
		OnGroupsChanged: func() {
			logger.Info("group membership changed")
		},
		OnAuthLapse: func() {
			logger.Error("session expired, sign in again")
		},
		OnForcedLogout: func(reason string) {
			logger.Errorf("logged out: %s", reason)
			os.Exit(1)
		},
	})

	ready := make(chan struct{})
	sess.Connect(func() {
		close(ready)
	}, func(err error) {
		logger.Errorf("connect: %v", err)
		os.Exit(1)
	})
	<-ready
	logger.Infof("connected to %s", cfg.WSURL)

	if conv, ok := parseConversation(*chat); ok {
		sess.Activate(conv)
		logger.Infof("active conversation: %s", *chat)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	sess.Deactivate()
	sess.Close()
}

func parseConversation(spec string) (model.Conversation, bool) {
	if spec == "" {
		return model.Conversation{}, false
	}
	parts := strings.SplitN(spec, ":", 3)
	switch {
	case parts[0] == "group" && len(parts) >= 2:
		return model.GroupConversation(model.FlexID(parts[1]), ""), true
	case parts[0] == "user" && len(parts) == 3:
		return model.DirectConversation(model.FlexID(parts[1]), parts[2]), true
	default:
		logger.Errorf("invalid -chat %q, expected user:<id>:<username> or group:<id>", spec)
		return model.Conversation{}, false
	}
}
