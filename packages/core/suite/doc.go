// Package suite defines declarative API test cases and loads them from YAML.
//
// A suite file looks like:
//
//	name: users
//	tests:
//	  - name: getUser
//	    method: GET
//	    path: /users/{id}
//	    pathParams: {id: "2"}
//	    expect:
//	      status: 200
//	      body:
//	        - path: data.first_name
//	          op: equals
//	          value: Janet
//
// Reqres returns the built-in suite for the reqres.in users API.
package suite
