package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/protocol"
	"sputnikchat/backend/internal/storage"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  add-user <login> <password> <full name> [avatar]
  list-users
  list-rooms
  create-room <title> <creator_id> <member_id>...

The creator is recorded as the inviter and is only a member when listed.`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Redis is only used to show who is online.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("WARNING: Redis unavailable, online state is not shown: %v", err)
		rdb.Close()
		rdb = nil
	}
	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add-user":
		if len(os.Args) < 5 || len(os.Args) > 6 {
			fmt.Println("Usage: admin add-user <login> <password> <full name> [avatar]")
			os.Exit(1)
		}
		var avatar *string
		if len(os.Args) == 6 {
			avatar = &os.Args[5]
		}
		user, err := addUser(storageSvc, os.Args[2], os.Args[3], os.Args[4], avatar)
		if err != nil {
			log.Fatalf("Error adding user: %v", err)
		}
		fmt.Printf("User %s has been added with id %s.\n", user.Login, user.ID)
	case "list-users":
		if err := listUsers(storageSvc); err != nil {
			log.Fatalf("Error listing users: %v", err)
		}
	case "list-rooms":
		if err := listRooms(storageSvc); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "create-room":
		if len(os.Args) < 5 {
			fmt.Println("Usage: admin create-room <title> <creator_id> <member_id>...")
			os.Exit(1)
		}
		room, err := createRoom(storageSvc, os.Args[2], os.Args[3], os.Args[4:])
		if err != nil {
			log.Fatalf("Error creating room: %v", err)
		}
		fmt.Printf("Room %q has been created with id %s.\n", room.Title, room.ID)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func addUser(s storage.Storage, login, password, fullName string, avatar *string) (*models.User, error) {
	user := &models.User{Login: login, Password: password, FullName: fullName, Avatar: avatar}
	if err := s.AddUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func listUsers(s storage.Storage) error {
	users, err := s.GetAllUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s  %-20s %s\n", u.ID, u.Login, u.FullName)
	}
	return nil
}

func listRooms(s storage.Storage) error {
	rooms, err := s.GetRooms()
	if err != nil {
		return err
	}
	for _, r := range rooms {
		members, err := s.GetRoomMembers(r.ID)
		if err != nil {
			return err
		}
		online, err := s.GetOnlineMembers(r.ID)
		if err != nil {
			return err
		}
		isOnline := make(map[string]bool, len(online))
		for _, id := range online {
			isOnline[id] = true
		}

		fmt.Printf("%s  %s\n", r.ID, r.Title)
		for _, m := range members {
			mark := ""
			if isOnline[m.UserID.String()] {
				mark = " (online)"
			}
			fmt.Printf("    %-8s %s%s\n", m.MemberStatus, m.User.FullName, mark)
		}
	}
	return nil
}

// createRoom mirrors the checks of the websocket create_room request.
func createRoom(s storage.Storage, title, creator string, memberIDs []string) (*models.Room, error) {
	creatorID, err := uuid.Parse(creator)
	if err != nil {
		return nil, fmt.Errorf("invalid creator id %q: %w", creator, err)
	}
	users, err := s.FindUsers(protocol.ParseIDs(memberIDs))
	if err != nil {
		return nil, err
	}
	if len(users) < config.MinRoomMembers {
		return nil, fmt.Errorf("a room needs at least %d existing members", config.MinRoomMembers)
	}

	found := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		found = append(found, u.ID)
	}
	room := &models.Room{Title: strings.TrimSpace(title)}
	if err := s.AddRoom(room, creatorID, found); err != nil {
		return nil, err
	}
	return room, nil
}
