// +build ignore
package main

func main() {
	println(gql(`query GetWidget {
	  widget(id:"1") {
		id
		name
	  }
	}`))
}
