package repository

import (
	"context"
	"testing"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

func openTestDB(t *testing.T, name string) *db.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func seedCustomer(t *testing.T, d *db.DB, phone string) *models.Customer {
	t.Helper()
	c, err := NewCustomerRepository(d).Create(context.Background(), &models.Customer{Name: "Asha", Phone: phone, Address: "12 MG Road"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func seedProduct(t *testing.T, d *db.DB, name, category string, price float64, stock int) *models.Product {
	t.Helper()
	p, err := NewProductRepository(d).Create(context.Background(), &models.Product{Name: name, Category: category, Price: price, Unit: "kg", Stock: stock})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func seedAgent(t *testing.T, d *db.DB, phone string, status models.AgentStatus) *models.DeliveryAgent {
	t.Helper()
	a, err := NewAgentRepository(d).Create(context.Background(), &models.DeliveryAgent{Name: "Ravi", Phone: phone, Vehicle: "bike", Status: status})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return a
}
