package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &chat.Session{}, &chat.Message{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
